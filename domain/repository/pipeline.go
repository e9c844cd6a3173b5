package repository

import (
	"context"

	"crosspost/domain/model"
)

// IPipeline is the per-platform publish state machine. Publish drives the
// provider protocol to completion and returns the provider media id. Any
// error is terminal for this attempt; the orchestrator never retries.
type IPipeline interface {
	Publish(ctx context.Context, cred *model.Credential, media *model.MediaRef) (string, error)
}

// IPhasedPipeline is implemented by pipelines whose protocol has a
// server-side processing step between the binary transfer and the final
// publish (container polling, upload commit). onPhase receives the
// intermediate record status so the orchestrator can surface it.
type IPhasedPipeline interface {
	PublishWithPhases(ctx context.Context, cred *model.Credential, media *model.MediaRef, onPhase func(status string)) (string, error)
}

// IRefresher is implemented by provider clients whose tokens can be renewed
// with a stored refresh token. The returned credential carries the rotated
// access material; everything else is copied from the input.
type IRefresher interface {
	Refresh(ctx context.Context, cred *model.Credential) (*model.Credential, error)
}
