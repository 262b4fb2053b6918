package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	t.Parallel()

	c := Default()
	require.NotZero(t, c.Len())

	lifetime, ok := c.Lookup(13401)
	require.True(t, ok)
	require.Equal(t, "lifetime", lifetime.Tier)
	require.Nil(t, lifetime.DurationDays)
	require.Equal(t, 30.0, lifetime.CommissionRate)

	annual, ok := c.Lookup(8683)
	require.True(t, ok)
	require.NotNil(t, annual.DurationDays)
	require.Equal(t, 365, *annual.DurationDays)

	_, ok = c.Lookup(999999)
	require.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.toml")
	payload := `
[[products]]
id = 42
tier = "annual"
duration_days = 365
commission_rate = 25.0

[[products]]
id = 43
tier = "lifetime"
commission_flat = 150000
class = "membership"

[[products]]
id = 44
tier = "ebook"
class = "digital"
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	annual, ok := c.Lookup(42)
	require.True(t, ok)
	require.Equal(t, 25.0, annual.CommissionRate)
	require.Equal(t, 365, *annual.DurationDays)

	lifetime, ok := c.Lookup(43)
	require.True(t, ok)
	require.Nil(t, lifetime.DurationDays)
	require.Equal(t, int64(150000), lifetime.CommissionFlat)

	ebook, ok := c.Lookup(44)
	require.True(t, ok)
	require.Equal(t, "digital", ebook.Class)

	// built-in table is untouched by file loads
	_, ok = Default().Lookup(42)
	require.False(t, ok)
}

func TestLoadFileRejectsMissingID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[products]]\ntier = \"annual\"\n"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
}
