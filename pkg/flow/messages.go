package flow

import "fmt"

// Customer-facing copy. WhatsApp-style, pt-BR.

const msgWelcome = `Olá! 👋 Bem-vindo ao atendimento VelozNet!

Como posso ajudar? Responda com o número da opção:

1️⃣ Suporte técnico
2️⃣ Financeiro
3️⃣ Planos e contratação`

const msgMenuAgain = `Desculpe, não entendi. 🙏 Responda com o número da opção:

1️⃣ Suporte técnico
2️⃣ Financeiro
3️⃣ Planos e contratação`

const msgSupportGreeting = `Certo! Vou te ajudar com o suporte técnico. 🔧

Me conta o que está acontecendo com a sua conexão.`

const msgFinanceMenu = `Financeiro, anotado! 💳 O que você precisa?

1️⃣ Segunda via de boleto
2️⃣ Enviar comprovante de pagamento`

const msgFinanceMenuAgain = `Não entendi. 🙏 Responda com o número:

1️⃣ Segunda via de boleto
2️⃣ Enviar comprovante de pagamento`

const msgSalesAsk = `Que ótimo! 🚀 Para verificar a cobertura na sua região, me informa o seu bairro e cidade, por favor.`

const msgAskDocument = `Para localizar o seu cadastro, me envia o seu CPF ou CNPJ (somente números), por favor.`

const msgAskDocumentAgain = `Não consegui identificar o documento. 🙏 Me envia o CPF (11 dígitos) ou CNPJ (14 dígitos), somente números.`

const msgAskDocumentAfterAttachment = `Recebi o seu arquivo! 📎 Para localizar o seu cadastro, me envia também o seu CPF ou CNPJ (somente números).`

const msgNoOverdue = `Boa notícia! 🎉 Não encontrei nenhuma fatura em aberto no seu cadastro. Se precisar de mais alguma coisa, é só chamar.`

const msgCantExtract = `Localizei um registro em aberto, mas não consegui extrair os detalhes da fatura com segurança. 😕 Para evitar qualquer erro, um atendente vai confirmar os dados com você. Pode me informar o nome completo do titular?`

const msgGenericFallback = `Desculpe, tive um problema para processar a sua mensagem agora. 🙏 Pode tentar novamente em instantes?`

func msgReceiptSummary(summary string) string {
	return fmt.Sprintf(`Recebi o seu comprovante! 📄

%s

Para confirmar a baixa no seu cadastro, me envia também o seu CPF ou CNPJ (somente números).`, summary)
}

// Persona system prompts for free-form replies.

const promptTriage = `Você é o assistente virtual de triagem da VelozNet, um provedor de internet brasileiro. ` +
	`Seja cordial e objetivo, responda em português do Brasil em tom de WhatsApp. ` +
	`Seu papel é entender o que o cliente precisa e direcioná-lo para suporte técnico, financeiro ou vendas.`

const promptSupport = `Você é o atendente de suporte técnico da VelozNet, um provedor de internet brasileiro. ` +
	`Responda em português do Brasil, em tom de WhatsApp, com passos práticos e curtos. ` +
	`Ajude o cliente a diagnosticar problemas de conexão (reiniciar roteador, verificar cabos, luz do equipamento). ` +
	`Se o problema persistir, oriente que um técnico pode ser agendado.`

const promptFinance = `Você é o atendente financeiro da VelozNet, um provedor de internet brasileiro. ` +
	`Responda em português do Brasil, em tom de WhatsApp. ` +
	`Ajude com boletos, faturas e comprovantes. Nunca invente valores, datas ou códigos de pagamento.`

const promptSales = `Você é o consultor de vendas da VelozNet, um provedor de internet brasileiro. ` +
	`Responda em português do Brasil, em tom de WhatsApp, de forma simpática. ` +
	`Apresente os planos de fibra óptica e peça o bairro e a cidade do cliente para verificar cobertura.`

func personaPrompt(state State) string {
	switch state {
	case StateSupportCheck:
		return promptSupport
	case StateFinanceWaitNeed, StateFinanceWaitDoc, StateFinanceHandle:
		return promptFinance
	case StateSalesFlow:
		return promptSales
	}
	return promptTriage
}
