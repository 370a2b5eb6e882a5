package domain

// ChatbotState is the user's position in the registration state machine.
type ChatbotState string

const (
	StateNew                   ChatbotState = "new"
	StateAwaitingPhone         ChatbotState = "awaiting_phone"
	StateAwaitingName          ChatbotState = "awaiting_name"
	StateAwaitingCity          ChatbotState = "awaiting_city"
	StateAwaitingTerms         ChatbotState = "awaiting_terms"
	StateAwaitingClarification ChatbotState = "awaiting_clarification"
	StateConfirmData           ChatbotState = "confirm_data"
	StateCompletedRegistration ChatbotState = "completed_registration"
	StateCompleted             ChatbotState = "completed"
)

func (s ChatbotState) String() string {
	return string(s)
}

func (s ChatbotState) IsValid() bool {
	switch s {
	case StateNew, StateAwaitingPhone, StateAwaitingName, StateAwaitingCity,
		StateAwaitingTerms, StateAwaitingClarification, StateConfirmData,
		StateCompletedRegistration, StateCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether registration is finished; further messages are
// routed to the assistant sub-flow.
func (s ChatbotState) IsTerminal() bool {
	return s == StateCompleted
}
