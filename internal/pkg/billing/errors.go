package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotResolvable means an event targets no known account and
	// does not create one. Redelivery will not help.
	ErrAccountNotResolvable = errors.New("account not resolvable")
	ErrProviderUnavailable  = errors.New("payment provider unavailable")
)

type NormalizationKind string

const (
	KindMissingMetadata  NormalizationKind = "missing_metadata"
	KindUnknownEventType NormalizationKind = "unknown_event_type"
	KindMalformedPayload NormalizationKind = "malformed_payload"
	KindInvalidField     NormalizationKind = "invalid_field"
)

// NormalizationError rejects an event that cannot become a SubscriptionChange.
type NormalizationError struct {
	Kind      NormalizationKind
	EventType string
	Field     string
	Err       error
}

func (e *NormalizationError) Error() string {
	msg := fmt.Sprintf("normalize %s: %s", e.EventType, e.Kind)
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// IsUnknownEventType reports events that are dropped without complaint.
func IsUnknownEventType(err error) bool {
	var ne *NormalizationError
	return errors.As(err, &ne) && ne.Kind == KindUnknownEventType
}

// TransientStoreError wraps failures that a later retry may not hit.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *TransientStoreError
	return errors.As(err, &te)
}

func transient(op string, err error) error {
	return &TransientStoreError{Op: op, Err: err}
}
