package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSiteConfig(t *testing.T) {
	path := writeConfig(t, `{
		"username": "root",
		"password": "secret",
		"timeout": 10,
		"site_id": "north-field",
		"subsections": [
			{
				"name": "rack-1",
				"ip_ranges": ["10.34.4.1-10.34.4.254"],
				"miners": [
					{"model": "Antminer Z15j", "quantity": 40},
					{"model": "T21", "quantity": 10}
				]
			}
		],
		"models": {
			"Antminer Z15j": {"hashrate": 420, "HB": 3, "fans": 2}
		}
	}`)

	cfg, err := LoadSiteConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "north-field", cfg.SiteID)
	assert.Equal(t, 10, cfg.Timeout)
	require.Len(t, cfg.Subsections, 1)
	assert.Equal(t, 50, cfg.Subsections[0].ExpectedMiners())

	// Model specs are keyed by canonical type.
	specs := cfg.ModelSpecs()
	require.Contains(t, specs, "Z15j")
	assert.Equal(t, 2, specs["Z15j"].Fans)
	assert.Equal(t, 3, specs["Z15j"].Hashboards)
	assert.InDelta(t, 420.0, specs["Z15j"].Hashrate, 0.001)

	sc := cfg.Context()
	assert.Equal(t, "root", sc.Username)
	assert.Equal(t, 10*time.Second, sc.Timeout)
}

func TestLoadSiteConfigDefaultTimeout(t *testing.T) {
	path := writeConfig(t, `{"subsections": [{"name": "a", "ip_ranges": ["10.0.0.1"]}]}`)

	cfg, err := LoadSiteConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Timeout)
}

func TestLoadSiteConfigErrors(t *testing.T) {
	_, err := LoadSiteConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadSiteConfig(writeConfig(t, `{not json`))
	assert.Error(t, err)

	_, err = LoadSiteConfig(writeConfig(t, `{"site_id": "empty"}`))
	assert.ErrorIs(t, err, ErrNoSubsections)
}
