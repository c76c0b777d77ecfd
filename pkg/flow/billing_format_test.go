package flow

import (
	"strings"
	"testing"

	"github.com/veloznet/atendebot/pkg/billing"
)

func TestFormatOverdue_NoItems(t *testing.T) {
	if got := FormatOverdue(nil); got != msgNoOverdue {
		t.Errorf("got %q, want no-overdue message", got)
	}
}

func TestFormatOverdue_TypedFields(t *testing.T) {
	got := FormatOverdue([]billing.Item{{
		Amount:  "150.00",
		DueDate: "2026-09-10",
		Barcode: "84670000001503",
	}})
	for _, want := range []string{"150.00", "2026-09-10", "84670000001503"} {
		if !strings.Contains(got, want) {
			t.Errorf("reply missing %q: %q", want, got)
		}
	}
}

func TestFormatOverdue_PrefersItemWithPaymentInstrument(t *testing.T) {
	got := FormatOverdue([]billing.Item{
		{Amount: "10.00"},
		{Amount: "99.90", PixCode: "00020126pixpayload"},
	})
	if !strings.Contains(got, "99.90") || !strings.Contains(got, "pixpayload") {
		t.Errorf("expected second item, got %q", got)
	}
}

func TestFormatOverdue_AliasFallback(t *testing.T) {
	// Typed decode found nothing; the raw object uses alternate keys.
	got := FormatOverdue([]billing.Item{{
		Raw: []byte(`{"value": "89.90", "due_date": "2026-09-01", "digitable_line": "84670000000899"}`),
	}})
	for _, want := range []string{"89.90", "2026-09-01", "84670000000899"} {
		if !strings.Contains(got, want) {
			t.Errorf("alias fallback missing %q: %q", want, got)
		}
	}
}

func TestFormatOverdue_EmptyFieldsNeverGuess(t *testing.T) {
	got := FormatOverdue([]billing.Item{{
		Amount:  "",
		DueDate: "",
		Barcode: "",
		Raw:     []byte(`{"valor": "", "vencimento": "", "linha_digitavel": ""}`),
	}})
	if got != msgCantExtract {
		t.Errorf("got %q, want explicit cant-extract message", got)
	}
}

func TestFormatOverdue_NumericAliasValue(t *testing.T) {
	got := FormatOverdue([]billing.Item{{
		Raw: []byte(`{"total": 120.5, "payment_link": "https://pay.example/abc"}`),
	}})
	if !strings.Contains(got, "120.5") || !strings.Contains(got, "https://pay.example/abc") {
		t.Errorf("numeric alias not rendered: %q", got)
	}
}
