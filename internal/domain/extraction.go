package domain

// MinExtractionConfidence is the threshold below which an extraction result is
// discarded and the deterministic fallback takes over.
const MinExtractionConfidence = 0.3

// ClarificationSlot names the slot a clarification question refers to.
const (
	ClarificationSlotCity  = "city"
	ClarificationSlotOther = "other"
)

// Clarification asks the user to disambiguate a slot value before it can be
// trusted (e.g. "Armenia" the Colombian city vs. the country).
type Clarification struct {
	Slot   string `json:"slot"`
	Prompt string `json:"prompt"`
}

// IsGeographic reports whether the ambiguity concerns the city slot.
// Geographic ambiguity must never be silently resolved by a default guess.
func (c *Clarification) IsGeographic() bool {
	return c != nil && c.Slot == ClarificationSlotCity
}

// ExtractionResult is the structured interpretation of one free-form message.
// All slot fields are optional; presence is explicit, never an implicit
// null-check on an untyped tree.
type ExtractionResult struct {
	Name            *string        `json:"name,omitempty"`
	Lastname        *string        `json:"lastname,omitempty"`
	City            *string        `json:"city,omitempty"`
	State           *string        `json:"state,omitempty"`
	AcceptsTerms    *bool          `json:"accepts_terms,omitempty"`
	ReferredByPhone *string        `json:"referred_by_phone,omitempty"`
	ReferralCode    *string        `json:"referral_code,omitempty"`
	IsCorrection    bool           `json:"is_correction,omitempty"`
	PreviousValue   *string        `json:"previous_value,omitempty"`
	Clarification   *Clarification `json:"clarification,omitempty"`
	Confidence      float64        `json:"confidence"`
	TonePrefix      *string        `json:"tone_prefix,omitempty"`
}

// Successful reports whether the result is trustworthy enough to apply.
func (r *ExtractionResult) Successful() bool {
	return r != nil && r.Confidence >= MinExtractionConfidence
}

// HasAnySlot reports whether at least one profile slot was extracted.
func (r *ExtractionResult) HasAnySlot() bool {
	if r == nil {
		return false
	}
	return r.Name != nil || r.Lastname != nil || r.City != nil ||
		r.State != nil || r.AcceptsTerms != nil ||
		r.ReferredByPhone != nil || r.ReferralCode != nil
}
