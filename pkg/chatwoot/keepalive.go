package chatwoot

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/veloznet/atendebot/pkg/logger"
)

// KeepAlive revalidates the platform session on a cron schedule so webhook
// bursts don't pay the sign-in round trip.
type KeepAlive struct {
	sessions *SessionManager
	expr     string
	gron     *gronx.Gronx
}

func NewKeepAlive(sessions *SessionManager, cronExpr string) *KeepAlive {
	return &KeepAlive{
		sessions: sessions,
		expr:     cronExpr,
		gron:     gronx.New(),
	}
}

// Run blocks until ctx is canceled, validating the session whenever the
// schedule fires. The minute tick matches cron resolution.
func (k *KeepAlive) Run(ctx context.Context) {
	if !k.gron.IsValid(k.expr) {
		logger.WarnCF("chatwoot", "Invalid keepalive schedule, keepalive disabled", map[string]any{
			"cron": k.expr,
		})
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := k.gron.IsDue(k.expr, now)
			if err != nil || !due {
				continue
			}
			if err := k.sessions.Validate(ctx); err != nil {
				logger.WarnCF("chatwoot", "Session keepalive failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}
}
