package onboarding

import (
	"context"
	"fmt"
	"sync/atomic"

	"log/slog"

	"github.com/admin/tg-bots/referral-bot/internal/ports/cache"
)

// aiToggleKey is the shared key an operator flips to disable AI extraction
// across all instances at once.
const aiToggleKey = "config:ai_enabled"

// AIToggle is the process-wide AI extraction switch. Reads are atomic and
// cheap; Reconcile refreshes the value from the shared store so every
// instance converges on the operator's setting.
type AIToggle struct {
	enabled atomic.Bool
	cache   cache.Cache
	log     *slog.Logger
}

func NewAIToggle(cacheClient cache.Cache, log *slog.Logger) *AIToggle {
	t := &AIToggle{
		cache: cacheClient,
		log:   log,
	}
	t.enabled.Store(true)
	return t
}

func (t *AIToggle) Enabled() bool {
	return t.enabled.Load()
}

// Reconcile refreshes the flag from the shared store. A missing key means
// enabled; only an explicit "false" turns extraction off.
func (t *AIToggle) Reconcile(ctx context.Context) error {
	if t.cache == nil {
		return nil
	}

	exists, err := t.cache.Exists(ctx, aiToggleKey)
	if err != nil {
		return fmt.Errorf("failed to check ai toggle: %w", err)
	}
	if !exists {
		t.set(true)
		return nil
	}

	val, err := t.cache.Get(ctx, aiToggleKey)
	if err != nil {
		return fmt.Errorf("failed to read ai toggle: %w", err)
	}

	t.set(val != "false")
	return nil
}

func (t *AIToggle) set(enabled bool) {
	if t.enabled.Swap(enabled) != enabled {
		t.log.Info("ai extraction toggle changed", "enabled", enabled)
	}
}
