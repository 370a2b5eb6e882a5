package jobs

import (
	"context"
	"log/slog"
	"time"
)

const toggleReconcilerName = "ai-toggle-reconciler"

// Reconciler syncs an in-process toggle with its shared backing store.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// ToggleReconciler keeps the AI extraction switch in step with the value an
// operator flips in redis. Runs every minute so a flip propagates to all
// instances without a restart.
type ToggleReconciler struct {
	toggle Reconciler
	log    *slog.Logger
}

func NewToggleReconciler(toggle Reconciler, log *slog.Logger) *ToggleReconciler {
	return &ToggleReconciler{
		toggle: toggle,
		log:    log,
	}
}

func (j *ToggleReconciler) Name() string {
	return toggleReconcilerName
}

func (j *ToggleReconciler) NextRun(now time.Time) time.Time {
	return now.Add(1 * time.Minute)
}

func (j *ToggleReconciler) Run(ctx context.Context) error {
	return j.toggle.Reconcile(ctx)
}
