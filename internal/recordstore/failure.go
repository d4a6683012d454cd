package recordstore

import (
	"errors"
)

// ErrAlreadySubscribed is returned by Subscribe while a live subscription is open
var ErrAlreadySubscribed = errors.New("record store already has a live subscription")

// FailureKind classifies where a failure happened
type FailureKind string

const (
	// FetchFailure means a one-shot read failed; the previous snapshot is kept
	FetchFailure FailureKind = "fetch"
	// SubscriptionFailure means the live listener failed; it is not reopened
	SubscriptionFailure FailureKind = "subscription"
	// MutationFailure means a create, update or remove was rejected
	MutationFailure FailureKind = "mutation"
)

// Operations reported in Failure.Op
const (
	OpFetch     = "fetch"
	OpSubscribe = "subscribe"
	OpCreate    = "create"
	OpUpdate    = "update"
	OpRemove    = "remove"
)

// User-facing messages for load failures
const (
	FetchFailureMessage        = "An unexpected error occurred while fetching patient details."
	SubscriptionFailureMessage = "An unexpected error occurred while listening for updates."
)

// Failure is the error type every store operation returns
type Failure struct {
	Kind    FailureKind
	Op      string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return f.Message + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func mutationFailure(op string, err error) *Failure {
	return &Failure{
		Kind:    MutationFailure,
		Op:      op,
		Message: "patient record " + op + " failed",
		Err:     err,
	}
}

// IsKind reports whether err is a Failure of the given kind
func IsKind(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}
