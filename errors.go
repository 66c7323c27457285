package kinet

// Error is a wrapper for specific kinds of failures for which there is no
// additional information necessary. These errors are defined as global
// variables so that callers can compare against them (directly or through
// errors.Cause).
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

// These are the global errors that may be returned by the package.
var (
	ErrInvalidInput = Error{"input has wrong length"}
	ErrCorruptModel = Error{"model data is corrupt"}
	ErrNoClasses    = Error{"classifier has no classes"}
	ErrTraining     = Error{"a training session is already running"}
)

// FailKind identifies the closed set of structured reasons a training run can
// be rejected or aborted. These are data conditions, not programmer errors,
// so they travel inside TrainResult rather than as returned errors.
type FailKind int

const (
	FailInsufficientData FailKind = iota
	FailClassBalance
	FailInvalidInput
	FailCancelled
)

func (k FailKind) String() string {
	switch k {
	case FailInsufficientData:
		return "insufficient-data"
	case FailClassBalance:
		return "class-balance"
	case FailInvalidInput:
		return "invalid-input"
	case FailCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Failure describes why a training run did not complete. Kind is the machine
// branchable part; Reason carries the human-readable specifics.
type Failure struct {
	Kind   FailKind
	Reason string
}

func (f Failure) String() string {
	return f.Kind.String() + ": " + f.Reason
}
