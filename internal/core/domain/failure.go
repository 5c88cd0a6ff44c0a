package domain

import (
	"errors"
	"fmt"

	"overkiz2mqtt/pkg/overkiz"
)

// SetupFailureKind tells the lifecycle manager how to react to a failed
// entry setup pass.
type SetupFailureKind int

const (
	// SetupNotReady is a transient condition, setup is retried with backoff.
	SetupNotReady SetupFailureKind = iota
	// SetupAuthRequired means the stored credentials were rejected.
	// Retrying cannot help until the entry is reauthenticated.
	SetupAuthRequired
	// SetupFatal means the entry itself is unusable, such as an
	// unsupported schema version.
	SetupFatal
)

func (k SetupFailureKind) String() string {
	switch k {
	case SetupAuthRequired:
		return "auth_required"
	case SetupFatal:
		return "fatal"
	default:
		return "not_ready"
	}
}

// SetupFailure is the outcome of a failed setup pass. No partial entry state
// survives it.
type SetupFailure struct {
	Kind SetupFailureKind
	Err  error
}

func (f SetupFailure) Error() string {
	return fmt.Sprintf("entry setup failed (%s): %v", f.Kind, f.Err)
}

func (f SetupFailure) Unwrap() error {
	return f.Err
}

// ClassifySetupError maps an error from a setup pass to a failure kind.
// Credential rejections need user action. Everything else, rate limits,
// maintenance windows, bans, timeouts and connection errors alike, is
// transient.
func ClassifySetupError(err error) SetupFailure {
	switch {
	case errors.Is(err, overkiz.ErrBadCredentials),
		errors.Is(err, overkiz.ErrNotSuchToken),
		errors.Is(err, overkiz.ErrNotAuthenticated),
		errors.Is(err, overkiz.ErrUnknownUser):
		return SetupFailure{Kind: SetupAuthRequired, Err: err}
	default:
		return SetupFailure{Kind: SetupNotReady, Err: err}
	}
}
