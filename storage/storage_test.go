package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "relative path", raw: "data/events.parquet", want: "data/events.parquet"},
		{name: "absolute path", raw: "/var/data/events.csv", want: "/var/data/events.csv"},
		{name: "file url", raw: "file:///var/data/events.csv", want: "/var/data/events.csv"},
		{name: "windows-ish name without scheme", raw: "events.parquet", want: "events.parquet"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			loc, err := Resolve(test.raw, Config{})
			require.NoError(t, err)
			assert.Equal(t, SchemeLocal, loc.Scheme)
			assert.Equal(t, test.want, loc.Path)
		})
	}
}

func TestResolveBucketSchemes(t *testing.T) {
	for _, scheme := range []string{"gs", "s3"} {
		t.Run(scheme, func(t *testing.T) {
			loc, err := Resolve(scheme+"://bucket/dir/file.parquet", Config{})
			require.NoError(t, err)
			assert.Equal(t, Scheme(scheme), loc.Scheme)
			assert.Equal(t, "bucket/dir/file.parquet", loc.Path)

			_, err = Resolve(scheme+":///dir/file.parquet", Config{})
			assert.ErrorIs(t, err, ErrInvalidPath, "missing bucket")

			_, err = Resolve(scheme+"://bucket", Config{})
			assert.ErrorIs(t, err, ErrInvalidPath, "empty object path")
		})
	}
}

func TestResolveRejectsUnknownScheme(t *testing.T) {
	_, err := Resolve("ftp://host/file.csv", Config{})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestResolveRejectsEmptyPath(t *testing.T) {
	_, err := Resolve("", Config{})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestResolveAzureContainerMode(t *testing.T) {
	// Default policy: authority is the container, account from env.
	t.Setenv(azureAccountEnv, "prodaccount")

	loc, err := Resolve("az://events/2024/data.parquet", Config{})
	require.NoError(t, err)
	assert.Equal(t, SchemeAzure, loc.Scheme)
	assert.Equal(t, "prodaccount", loc.Account)
	assert.Equal(t, "events/2024/data.parquet", loc.Path)
}

func TestResolveAzureContainerModeWithoutAccount(t *testing.T) {
	t.Setenv(azureAccountEnv, "")

	_, err := Resolve("az://events/2024/data.parquet", Config{})
	assert.ErrorIs(t, err, ErrMissingAccountConfiguration)
}

func TestResolveAzureAccountMode(t *testing.T) {
	t.Setenv(azureAccountEnv, "ignored")

	loc, err := Resolve("az://prodaccount/events/2024/data.parquet", Config{AzAuthorityIsAccount: true})
	require.NoError(t, err)
	assert.Equal(t, "prodaccount", loc.Account)
	assert.Equal(t, "events/2024/data.parquet", loc.Path)
}

func TestResolveAzureAccountModeSamePathDiffersByPolicy(t *testing.T) {
	// The same URL parses to different locations under the two
	// policies; the flag decides the interpretation, not the URL shape.
	t.Setenv(azureAccountEnv, "envaccount")
	raw := "az://alpha/beta/file.avro"

	containerMode, err := Resolve(raw, Config{})
	require.NoError(t, err)
	accountMode, err := Resolve(raw, Config{AzAuthorityIsAccount: true})
	require.NoError(t, err)

	assert.Equal(t, "envaccount", containerMode.Account)
	assert.Equal(t, "alpha/beta/file.avro", containerMode.Path)
	assert.Equal(t, "alpha", accountMode.Account)
	assert.Equal(t, "beta/file.avro", accountMode.Path)
}

func TestResolveAzureAccountModeEmptyAuthority(t *testing.T) {
	t.Setenv(azureAccountEnv, "envaccount")

	loc, err := Resolve("az:///events/data.parquet", Config{AzAuthorityIsAccount: true})
	require.NoError(t, err)
	assert.Equal(t, "envaccount", loc.Account)
	assert.Equal(t, "events/data.parquet", loc.Path)

	t.Setenv(azureAccountEnv, "")
	_, err = Resolve("az:///events/data.parquet", Config{AzAuthorityIsAccount: true})
	assert.ErrorIs(t, err, ErrMissingAccountConfiguration)
}

func TestResolveAzureMissingContainer(t *testing.T) {
	t.Setenv(azureAccountEnv, "envaccount")

	_, err := Resolve("az://prodaccount", Config{AzAuthorityIsAccount: true})
	assert.ErrorIs(t, err, ErrInvalidPath)
}
