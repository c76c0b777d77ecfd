// Package intent classifies free-form customer text into one of the
// service areas. Classification is rule based and side-effect free:
// numeric menu replies win, then Portuguese keyword matching, then
// unknown.
package intent

import "strings"

// Intent is a resolved service area.
type Intent string

const (
	Support Intent = "support"
	Finance Intent = "finance"
	Sales   Intent = "sales"
	Unknown Intent = "unknown"
)

// Menu positions presented to the customer. Keep in sync with the
// welcome message copy.
const (
	menuSupport = 1
	menuFinance = 2
	menuSales   = 3
)

var supportKeywords = []string{
	"suporte",
	"internet",
	"sem conexao",
	"sem conexão",
	"conexao",
	"conexão",
	"lento",
	"lenta",
	"lentidao",
	"lentidão",
	"caiu",
	"caindo",
	"oscilando",
	"oscilação",
	"wifi",
	"wi-fi",
	"roteador",
	"modem",
	"sinal",
	"tecnico",
	"técnico",
	"visita",
	"nao funciona",
	"não funciona",
}

var financeKeywords = []string{
	"financeiro",
	"boleto",
	"fatura",
	"conta",
	"pagamento",
	"pagar",
	"paguei",
	"vencimento",
	"vencida",
	"vencido",
	"atraso",
	"atrasada",
	"debito",
	"débito",
	"pix",
	"comprovante",
	"segunda via",
	"2 via",
	"2a via",
	"desbloqueio",
	"desbloquear",
	"negociar",
	"negociacao",
	"negociação",
}

var salesKeywords = []string{
	"vendas",
	"plano",
	"planos",
	"contratar",
	"contratacao",
	"contratação",
	"assinar",
	"assinatura",
	"upgrade",
	"velocidade",
	"mudar de plano",
	"cobertura",
	"disponibilidade",
	"instalar",
	"instalacao",
	"instalação",
	"novo cliente",
	"promocao",
	"promoção",
	"valores",
	"preco",
	"preço",
}

// MenuChoice extracts a bare menu selection from text. It returns 0
// when the text is not a lone option number.
func MenuChoice(text string) int {
	switch strings.TrimSpace(text) {
	case "1", "1.", "1)":
		return menuSupport
	case "2", "2.", "2)":
		return menuFinance
	case "3", "3.", "3)":
		return menuSales
	}
	return 0
}

// Classify resolves text to an intent. An explicit menu choice takes
// precedence over keyword matching; when both fail the result is
// Unknown and the caller decides what to do next.
func Classify(text string, choice int) Intent {
	switch choice {
	case menuSupport:
		return Support
	case menuFinance:
		return Finance
	case menuSales:
		return Sales
	}

	lower := strings.ToLower(text)
	if matchesAny(lower, financeKeywords) {
		return Finance
	}
	if matchesAny(lower, supportKeywords) {
		return Support
	}
	if matchesAny(lower, salesKeywords) {
		return Sales
	}
	return Unknown
}

// ClassifyText is Classify with the menu choice derived from the text
// itself.
func ClassifyText(text string) Intent {
	return Classify(text, MenuChoice(text))
}

func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ParseIntent maps a stored attribute value back to an Intent. Anything
// unrecognized is Unknown.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case Support:
		return Support
	case Finance:
		return Finance
	case Sales:
		return Sales
	}
	return Unknown
}
