package ops

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zerx-lab/penbridge/internal/errors"
	"github.com/zerx-lab/penbridge/internal/platform"
	"github.com/zerx-lab/penbridge/internal/reconcile"
)

// ReconcileStatusesInput contains parameters for the ReconcileStatuses
// operation. An empty Platform reconciles every configured platform.
type ReconcileStatusesInput struct {
	Platform string
}

// PlatformReconcileResult is one platform's reconcile outcome. Error is
// set when that platform's listing failed outright.
type PlatformReconcileResult struct {
	Platform string             `json:"platform"`
	Summary  *reconcile.Summary `json:"summary,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// ReconcileStatusesOutput contains the result of the ReconcileStatuses operation.
type ReconcileStatusesOutput struct {
	Results []PlatformReconcileResult `json:"results"`
}

// ReconcileStatuses pulls each platform's article listing and refreshes
// the local view of moderation status, remote IDs, and URLs. Platforms
// are reconciled concurrently; one platform failing does not stop the
// others, but cancellation stops them all.
func ReconcileStatuses(ctx context.Context, env *Env, input ReconcileStatusesInput) (*ReconcileStatusesOutput, error) {
	var ids []platform.ID
	if input.Platform != "" {
		pid, err := env.parsePlatform(input.Platform)
		if err != nil {
			return nil, err
		}
		ids = []platform.ID{pid}
	} else {
		ids = env.Registry.IDs()
	}

	results := make([]PlatformReconcileResult, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	for i, pid := range ids {
		g.Go(func() error {
			summary, err := env.recon.Reconcile(ctx, pid)
			if err != nil {
				if errors.Is(err, errors.ErrCancelled) {
					return err
				}
				results[i] = PlatformReconcileResult{Platform: string(pid), Error: errorText(err)}
				return nil
			}
			results[i] = PlatformReconcileResult{Platform: string(pid), Summary: summary}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ReconcileStatusesOutput{Results: results}, nil
}

// errorText prefers the coded message over the raw error chain.
func errorText(err error) string {
	if bErr, ok := errors.AsBridgeError(err); ok {
		return bErr.Message
	}
	return err.Error()
}
