package extractor

// extractRequest is the payload sent to the structured-extraction service.
type extractRequest struct {
	Query   string `json:"query"`
	Context string `json:"context,omitempty"`
}

// extractResponse is the fixed schema the service answers with. Optional
// fields carry explicit presence; the response is validated once here, at the
// service boundary.
type extractResponse struct {
	Name            *string             `json:"name,omitempty"`
	Lastname        *string             `json:"lastname,omitempty"`
	City            *string             `json:"city,omitempty"`
	State           *string             `json:"state,omitempty"`
	AcceptsTerms    *bool               `json:"acceptsTerms,omitempty"`
	ReferredByPhone *string             `json:"referredByPhone,omitempty"`
	ReferralCode    *string             `json:"referralCode,omitempty"`
	Correction      *bool               `json:"correction,omitempty"`
	PreviousValue   *string             `json:"previousValue,omitempty"`
	Clarification   *clarificationBlock `json:"needsClarification,omitempty"`
	Confidence      float64             `json:"confidence"`
	TonePrefix      *string             `json:"tonePrefix,omitempty"`
}

type clarificationBlock struct {
	City  *string `json:"city,omitempty"`
	Other *string `json:"other,omitempty"`
}
