package domain

import (
	"context"
)

// BaselineStore keeps the per-user behavioral pattern history used by the
// behavioral scorer. Updates are append-only: new samples are added, never
// merged in place, so concurrent verifications for the same user cannot
// corrupt the history. Callers must not assume read-your-write consistency
// across concurrent requests.
type BaselineStore interface {
	// Append records a new behavioral sample for the user.
	Append(ctx context.Context, tenantID string, userID string, pattern *BehavioralPattern) error

	// History returns up to limit most recent samples, newest first.
	// An unknown user returns an empty history, not an error.
	History(ctx context.Context, tenantID string, userID string, limit int) ([]*BehavioralPattern, error)
}
