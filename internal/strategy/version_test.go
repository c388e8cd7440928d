package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVersionSupported(t *testing.T) {
	assert.True(t, IsVersionSupported("1.0"))
	assert.True(t, IsVersionSupported("1.0.0"))
	assert.False(t, IsVersionSupported("2.0"))
	assert.False(t, IsVersionSupported("not-a-version"))
}

func TestCompareVersions(t *testing.T) {
	cmp, err := CompareVersions("1.0", "1.0")
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)

	cmp, err = CompareVersions("0.9", "1.0")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = CompareVersions("1.1", "1.0")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)
}

func TestCheckCompatibility_CurrentVersionIsCompatible(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	assert.NoError(t, CheckCompatibility(tmpl))
}

func TestCheckCompatibility_NewerVersionIsIncompatible(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.Metadata.SchemaVersion = "2.0"
	assert.Error(t, CheckCompatibility(tmpl))
}

func TestCheckCompatibility_NilTemplate(t *testing.T) {
	assert.Error(t, CheckCompatibility(nil))
}

func TestMigrate_AlreadyCurrentIsNoop(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	err := Migrate(tmpl)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, tmpl.Metadata.SchemaVersion)
}

func TestMigrate_NewerVersionFails(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.Metadata.SchemaVersion = "2.0"
	err := Migrate(tmpl)
	assert.Error(t, err)
}

func TestMigrate_NilTemplate(t *testing.T) {
	err := Migrate(nil)
	assert.Error(t, err)
}

func TestGetMigrationPath_SameVersionIsEmpty(t *testing.T) {
	path, err := GetMigrationPath("1.0", "1.0")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestGetVersionInfo(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	info, err := GetVersionInfo(tmpl)
	require.NoError(t, err)
	assert.True(t, info.IsCompatible)
	assert.False(t, info.RequiresMigration)
	assert.Equal(t, SchemaVersion, info.SchemaVersion)
}

func TestGetSchemaVersion(t *testing.T) {
	assert.Equal(t, "1.0", GetSchemaVersion())
}
