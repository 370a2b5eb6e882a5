package texts

import (
	"fmt"
	"strings"
)

// User-facing copy for the registration conversation. Spanish, informal
// register, matching the campaign's tone.

const (
	Welcome = "¡Hola%s! Bienvenido a la campaña. 🙌"

	AskPhone   = "Para comenzar, ¿me compartes tu número de celular? (con indicativo, por ejemplo +573001234567)"
	ReAskPhone = "No pude reconocer ese número. ¿Me lo escribes de nuevo con indicativo? Por ejemplo: +573001234567"

	AskName    = "¿Cuál es tu nombre?"
	AskCity    = "¿En qué ciudad vives?"
	AskTerms   = "¿Aceptas los términos y condiciones de la campaña? Responde \"Sí\" para continuar."
	ReAskTerms = "Para continuar necesito que aceptes los términos. Responde \"Sí\" si estás de acuerdo."

	ConfirmData      = "Confirma tus datos: %s, de %s. ¿Está todo bien? Responde \"Sí\" para finalizar."
	ClarifyCity      = "¿Te refieres a la ciudad de %s en Colombia?"
	ClarifyWhichCity = "¿A qué ciudad te refieres?"
	CorrectionAck    = "Listo, cambié \"%s\" por \"%s\". ✅"

	Completed = "¡Gracias %s! Tu registro quedó completo. 🎉\n\nTu código de referido es: %s"

	ShareIntro    = "Comparte estos enlaces para invitar a más personas:"
	ReferralError = "[error: no se pudo generar tu enlace de invitación]"

	Apology = "Lo siento, algo salió mal. ¿Me lo repites, por favor?"

	AssistantAck         = "Recibido, en un momento te respondo. 🙂"
	AssistantUnavailable = "En este momento no puedo responderte. Inténtalo de nuevo en unos minutos. 🙏"

	// InviteGreeting is the prefilled message a referred contact sends on
	// first touch. The trailing code is what attribution parses back out.
	InviteGreeting = "Hola, vengo referido por: %s"
)

func FormatWelcome(senderName string) string {
	if strings.TrimSpace(senderName) == "" {
		return fmt.Sprintf(Welcome, "")
	}
	return fmt.Sprintf(Welcome, " "+strings.TrimSpace(senderName))
}

func FormatConfirmData(name, city string) string {
	return fmt.Sprintf(ConfirmData, name, city)
}

func FormatClarifyCity(city string) string {
	return fmt.Sprintf(ClarifyCity, city)
}

func FormatCorrectionAck(previous, current string) string {
	return fmt.Sprintf(CorrectionAck, previous, current)
}

func FormatCompleted(name, code string) string {
	return fmt.Sprintf(Completed, name, code)
}

func FormatInviteGreeting(code string) string {
	return fmt.Sprintf(InviteGreeting, code)
}

// WithTonePrefix prepends the extractor's empathetic prefix when present.
func WithTonePrefix(prefix *string, message string) string {
	if prefix == nil || strings.TrimSpace(*prefix) == "" {
		return message
	}
	return strings.TrimSpace(*prefix) + " " + message
}
