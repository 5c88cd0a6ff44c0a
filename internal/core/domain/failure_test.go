package domain

import (
	"errors"
	"fmt"
	"testing"

	"overkiz2mqtt/pkg/overkiz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAuthErrors(t *testing.T) {

	require := require.New(t)

	for _, err := range []error{
		overkiz.ErrBadCredentials,
		overkiz.ErrNotSuchToken,
		overkiz.ErrNotAuthenticated,
		overkiz.ErrUnknownUser,
	} {
		f := ClassifySetupError(fmt.Errorf("login: %w", err))
		require.Equal(SetupAuthRequired, f.Kind, "error %v", err)
		require.True(errors.Is(f, err))
	}
}

func TestClassifyTransientErrors(t *testing.T) {

	require := require.New(t)

	for _, err := range []error{
		overkiz.ErrTooManyRequests,
		overkiz.ErrMaintenance,
		overkiz.ErrTooManyAttemptsBanned,
		errors.New("dial tcp: i/o timeout"),
	} {
		f := ClassifySetupError(err)
		require.Equal(SetupNotReady, f.Kind, "error %v", err)
	}
}

func TestSetupFailureUnwraps(t *testing.T) {

	f := SetupFailure{Kind: SetupAuthRequired, Err: overkiz.ErrBadCredentials}
	assert.True(t, errors.Is(f, overkiz.ErrBadCredentials))
	assert.Contains(t, f.Error(), "auth_required")
}
