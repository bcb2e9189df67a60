package snowflake

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowtools/pkg/errors"
)

func TestInManagedRuntime(t *testing.T) {
	original := sessionTokenPath
	defer func() { sessionTokenPath = original }()

	t.Run("no host", func(t *testing.T) {
		t.Setenv("SNOWFLAKE_HOST", "")
		assert.False(t, InManagedRuntime())
	})

	t.Run("host without token", func(t *testing.T) {
		t.Setenv("SNOWFLAKE_HOST", "myacct.snowflakecomputing.com")
		sessionTokenPath = filepath.Join(t.TempDir(), "missing")
		assert.False(t, InManagedRuntime())
	})

	t.Run("host with token", func(t *testing.T) {
		t.Setenv("SNOWFLAKE_HOST", "myacct.snowflakecomputing.com")
		tokenFile := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("ey.session.token"), 0600))
		sessionTokenPath = tokenFile
		assert.True(t, InManagedRuntime())
	})
}

func TestOpenSessionMissingHost(t *testing.T) {
	t.Setenv("SNOWFLAKE_HOST", "")

	_, err := OpenSession()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInitialization, errors.GetErrorCode(err))
}

func TestOpenSessionMissingToken(t *testing.T) {
	original := sessionTokenPath
	defer func() { sessionTokenPath = original }()

	t.Setenv("SNOWFLAKE_HOST", "myacct.snowflakecomputing.com")
	sessionTokenPath = filepath.Join(t.TempDir(), "missing")

	_, err := OpenSession()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSessionToken, errors.GetErrorCode(err))
}
