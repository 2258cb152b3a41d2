package pipeline

import (
	"context"

	domainwf "github.com/garyjia/invoice-reconciliation/internal/domain/workflow"
)

type reviewWantedKey struct{}

// withReviewWanted marks ctx so the RESOLVED trigger routes through REVIEWING
func withReviewWanted(ctx context.Context, wanted bool) context.Context {
	return context.WithValue(ctx, reviewWantedKey{}, wanted)
}

func reviewWanted(ctx context.Context) bool {
	wanted, _ := ctx.Value(reviewWantedKey{}).(bool)
	return wanted
}

// BuildPipelineStateMachine creates a state machine for one reconciliation run
func BuildPipelineStateMachine() domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	// EXTRACTING state transitions
	builder.Configure(domainwf.StateExtracting).
		Permit(domainwf.TriggerExtracted, domainwf.StateMatching).
		Permit(domainwf.TriggerExtractionFailed, domainwf.StateErrored)

	// MATCHING state transitions
	builder.Configure(domainwf.StateMatching).
		Permit(domainwf.TriggerMatched, domainwf.StateDetecting)

	// DETECTING state transitions
	builder.Configure(domainwf.StateDetecting).
		Permit(domainwf.TriggerDetected, domainwf.StateResolving)

	// RESOLVING goes through review only for flagged or escalated invoices
	builder.Configure(domainwf.StateResolving).
		PermitIf(domainwf.TriggerResolved, domainwf.StateReviewing, reviewWanted).
		Permit(domainwf.TriggerResolved, domainwf.StateDone)

	// REVIEWING state transitions
	builder.Configure(domainwf.StateReviewing).
		Permit(domainwf.TriggerReviewed, domainwf.StateDone)

	// DONE and ERRORED are terminal states

	return builder.Build(domainwf.StateExtracting)
}
