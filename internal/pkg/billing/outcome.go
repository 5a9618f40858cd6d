package billing

import (
	"errors"

	"github.com/ManuelReschke/HubSuite/app/models"
	"github.com/ManuelReschke/HubSuite/internal/pkg/identity"
)

// LedgerOutcome classifies a processing attempt for the webhook ledger.
// The returned error is what the ledger should keep; nil marks the row done.
func LedgerOutcome(res *ReconcileResult, err error) (string, error) {
	switch {
	case err == nil && res != nil && res.Outcome == OutcomeDuplicate:
		return models.WebhookOutcomeDuplicate, nil
	case err == nil && res != nil && res.Outcome == OutcomeStale:
		return models.WebhookOutcomeStale, nil
	case err == nil && res != nil && res.Outcome == OutcomeDeferred:
		return models.WebhookOutcomeDeferred, nil
	case err == nil:
		return models.WebhookOutcomeProcessed, nil
	case IsUnknownEventType(err):
		return models.WebhookOutcomeIgnored, nil
	case IsTransient(err):
		return models.WebhookOutcomeRetrying, err
	case errors.Is(err, ErrAccountNotResolvable), errors.Is(err, identity.ErrKindMismatch):
		return models.WebhookOutcomeUnresolvable, err
	default:
		return models.WebhookOutcomeRejected, err
	}
}
