// AtendeBot - Conversational customer service gateway for ISPs
// Bridges a Chatwoot helpdesk to billing and LLM backends.
// License: MIT
//
// Copyright (c) 2026 AtendeBot contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veloznet/atendebot/cmd/atendebot/internal"
	"github.com/veloznet/atendebot/cmd/atendebot/internal/console"
	"github.com/veloznet/atendebot/cmd/atendebot/internal/gateway"
	"github.com/veloznet/atendebot/cmd/atendebot/internal/version"
)

func NewAtendebotCommand() *cobra.Command {
	short := fmt.Sprintf("%s atendebot - Customer Service Gateway v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "atendebot",
		Short:   short,
		Example: "atendebot gateway",
	}

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		console.NewConsoleCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewAtendebotCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
