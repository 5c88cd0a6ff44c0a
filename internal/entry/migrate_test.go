package entry

import (
	"testing"

	"overkiz2mqtt/pkg/overkiz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateV1ToV2(t *testing.T) {
	e := &Entry{
		ID:      "e1",
		Title:   "user@example.com",
		Version: 1,
		Data: map[string]string{
			KeyUsername: "user@example.com",
			KeyPassword: "secret",
			KeyHub:      "somfy_europe",
		},
	}

	changed, err := Migrate(e)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, 2, e.Version)
	assert.Equal(t, "somfy_europe", e.Data[KeyServer])
	assert.Equal(t, string(overkiz.APITypeCloud), e.Data[KeyAPIType])
	_, hasHub := e.Data[KeyHub]
	assert.False(t, hasHub, "hub key must be gone after migration")

	// credentials must resolve after migration
	creds, err := e.Credentials()
	require.NoError(t, err)
	assert.Equal(t, overkiz.APITypeCloud, creds.APIType)
	assert.Equal(t, overkiz.ServerSomfyEurope, creds.Cloud.ServerKey)
}

func TestMigrateCurrentVersionIsNoop(t *testing.T) {
	e := &Entry{
		Version: 2,
		Data: map[string]string{
			KeyAPIType: string(overkiz.APITypeLocal),
			KeyHost:    "gateway-1234-5678-9012.local:8443",
			KeyToken:   "tok",
		},
	}

	changed, err := Migrate(e)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, e.Version)
}

func TestMigrateNewerSchemaFails(t *testing.T) {
	e := &Entry{Version: 3, Data: map[string]string{}}

	_, err := Migrate(e)
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}

func TestMigrateV1WithoutHubFails(t *testing.T) {
	e := &Entry{Version: 1, Data: map[string]string{KeyUsername: "u"}}

	_, err := Migrate(e)
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}
