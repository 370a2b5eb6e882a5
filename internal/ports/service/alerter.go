package service

import (
	"context"
)

// IAlerterService sends operational alerts.
type IAlerterService interface {
	SendAlert(ctx context.Context, message string) error
}
