package service

import (
	"context"

	"github.com/admin/tg-bots/referral-bot/internal/domain"
)

// IExtractorService turns a free-form message into structured slot values.
// Failures come back as domain.ErrExtractionUnavailable or
// domain.ErrExtractionLowConfidence; the caller decides about fallback.
type IExtractorService interface {
	Extract(ctx context.Context, query string, previousContext string) (*domain.ExtractionResult, error)
}
