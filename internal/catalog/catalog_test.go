package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/milestones/pkg/types"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoad_MissingFileUsesDefault(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, types.DefaultCatalog().Definitions(), c.Definitions())
}

func TestLoad_CustomCatalog(t *testing.T) {
	dir := writeCatalog(t, `
badges:
  - id: a
    name: First
    icon: "1"
    required_trips: 1
  - id: c
    name: Third
    description: five trips
    required_trips: 5
  - id: b
    name: Second
    required_trips: 3
`)
	c, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	defs := c.Definitions()
	assert.Equal(t, "a", defs[0].ID)
	assert.Equal(t, "1", defs[0].Icon)
	assert.Equal(t, "c", defs[1].ID, "file order is kept")
	assert.Equal(t, "five trips", defs[1].Description)
	assert.Equal(t, 3, defs[2].RequiredTrips)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name:    "missing required_trips",
			body:    "badges:\n  - id: a\n    name: A\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "missing id",
			body:    "badges:\n  - name: A\n    required_trips: 1\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "negative threshold",
			body:    "badges:\n  - id: a\n    name: A\n    required_trips: -2\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "duplicate ids",
			body:    "badges:\n  - {id: a, name: A, required_trips: 1}\n  - {id: a, name: B, required_trips: 2}\n",
			wantErr: types.ErrDuplicateBadgeID,
		},
		{
			name:    "no badges key",
			body:    "tiers: []\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "fractional threshold",
			body:    "badges:\n  - id: a\n    name: A\n    required_trips: 2.9\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "boolean threshold",
			body:    "badges:\n  - id: a\n    name: A\n    required_trips: true\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "quoted threshold",
			body:    "badges:\n  - id: a\n    name: A\n    required_trips: \"3\"\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "empty string threshold",
			body:    "badges:\n  - id: a\n    name: A\n    required_trips: \"\"\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "null threshold",
			body:    "badges:\n  - id: a\n    name: A\n    required_trips:\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "misspelled key",
			body:    "badges:\n  - id: a\n    name: A\n    required_trip: 1\n",
			wantErr: types.ErrConfiguration,
		},
		{
			name:    "not yaml",
			body:    "badges: [\n",
			wantErr: types.ErrConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(writeCatalog(t, tt.body))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, c)
		})
	}
}

func TestLoad_ZeroThreshold(t *testing.T) {
	c, err := Load(writeCatalog(t, "badges:\n  - id: welcome\n    name: Welcome\n    required_trips: 0\n"))
	require.NoError(t, err)
	d, ok := c.Lookup("welcome")
	require.True(t, ok)
	assert.Equal(t, 0, d.RequiredTrips)
}

func TestLoad_ExplicitEmptyCatalog(t *testing.T) {
	c, err := Load(writeCatalog(t, "badges: []\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestMarshal_SeedsLoadableFile(t *testing.T) {
	data, err := Marshal(types.DefaultCatalog())
	require.NoError(t, err)
	assert.Contains(t, string(data), "required_trips: 12")

	c, err := Load(writeCatalog(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultCatalog().Definitions(), c.Definitions())
}

func TestMarshal_Empty(t *testing.T) {
	data, err := Marshal(types.MustCatalog(nil))
	require.NoError(t, err)
	assert.Equal(t, "badges: []\n", string(data))
}
