package flow

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/veloznet/atendebot/pkg/billing"
)

// A formatted reply shorter than this carries no usable payment data;
// a bare header plus one stray field still clears it.
const minUsefulLength = 40

// Field-name aliases scanned in the raw invoice when the typed decode
// came up short. The billing API's schema is not contractually fixed
// across ERP versions; this list is empirical.
var (
	amountAliases  = []string{"valor", "value", "amount", "total", "price"}
	dueAliases     = []string{"vencimento", "due_date", "dueDate", "data_vencimento"}
	barcodeAliases = []string{"linha_digitavel", "barcode", "codigo_barras", "digitable_line"}
	pixAliases     = []string{"pix", "pix_copia_cola", "qr_code_pix", "emv"}
	linkAliases    = []string{"link", "url", "invoice_url", "payment_link"}
)

// FormatOverdue renders the customer reply for a billing lookup result.
// The first item carrying a payment instrument is preferred. Formatting
// falls back from typed fields to alias scanning; when neither yields a
// minimally useful message the reply says so explicitly, since payment
// data must never be guessed.
func FormatOverdue(items []billing.Item) string {
	if len(items) == 0 {
		return msgNoOverdue
	}
	item := pickBest(items)

	if msg := formatTyped(item); len(msg) >= minUsefulLength {
		return msg
	}
	if msg := formatFromAliases(item.Raw); len(msg) >= minUsefulLength {
		return msg
	}
	return msgCantExtract
}

func pickBest(items []billing.Item) billing.Item {
	for _, it := range items {
		if it.Barcode != "" || it.PixCode != "" || it.Link != "" {
			return it
		}
	}
	return items[0]
}

func formatTyped(item billing.Item) string {
	return renderInvoice(
		string(item.Amount),
		string(item.DueDate),
		string(item.Barcode),
		string(item.PixCode),
		string(item.Link),
	)
}

func formatFromAliases(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	return renderInvoice(
		firstAlias(raw, amountAliases),
		firstAlias(raw, dueAliases),
		firstAlias(raw, barcodeAliases),
		firstAlias(raw, pixAliases),
		firstAlias(raw, linkAliases),
	)
}

func firstAlias(raw []byte, aliases []string) string {
	for _, key := range aliases {
		if v := gjson.GetBytes(raw, key); v.Exists() {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func renderInvoice(amount, due, barcode, pix, link string) string {
	var sb strings.Builder
	sb.WriteString("Encontrei uma fatura em aberto! 📄")
	if amount != "" {
		fmt.Fprintf(&sb, "\n💰 Valor: R$ %s", amount)
	}
	if due != "" {
		fmt.Fprintf(&sb, "\n📅 Vencimento: %s", due)
	}
	if barcode != "" {
		fmt.Fprintf(&sb, "\n\n🔢 Linha digitável:\n%s", barcode)
	}
	if pix != "" {
		fmt.Fprintf(&sb, "\n\n⚡ PIX copia e cola:\n%s", pix)
	}
	if link != "" {
		fmt.Fprintf(&sb, "\n\n🔗 Acesse: %s", link)
	}
	return sb.String()
}
