package yaml_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/flatfinder"
	"github.com/fwojciec/flatfinder/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const immoscoutConfig = `
interval: 5m
blacklist: [tausch]
sources:
  - name: immoscout
    url: https://www.immobilienscout24.de/Suche/de/berlin/berlin/wohnung-mieten
    container: "#resultListItems li.result-list__listing"
    next_page: "#pager .align-right a@href"
    max_pages: 20
    fields:
      id: ".result-list-entry@data-obid | int"
      title: ".result-list-entry h5 | removeNewline | trim"
      address: ".result-list-entry__address span"
      link: ".result-list-entry a@href"
    blacklist: [wg]
    title_strip: ["NEU"]
    address_strip: "\\(.*\\),.*$"
  - name: degewo
    url: https://immosuche.degewo.de/de/search
    container: article.search__item
    render: true
    fields:
      title: h2
      link: a@href
`

func TestParseConfig(t *testing.T) {
	t.Parallel()

	t.Run("parses interval and sources", func(t *testing.T) {
		t.Parallel()

		cfg, err := yaml.ParseConfig([]byte(immoscoutConfig))

		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, cfg.Interval)
		assert.Equal(t, []string{"tausch"}, cfg.Blacklist)
		require.Len(t, cfg.Sources, 2)
		assert.Equal(t, "immoscout", cfg.Sources[0].Name)
		assert.Equal(t, 20, cfg.Sources[0].MaxPages)
		assert.Equal(t, `\(.*\),.*$`, cfg.Sources[0].AddressStrip)
		assert.True(t, cfg.Sources[1].Render)
	})

	t.Run("accepts an empty document", func(t *testing.T) {
		t.Parallel()

		cfg, err := yaml.ParseConfig(nil)

		require.NoError(t, err)
		assert.Empty(t, cfg.Sources)
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.ParseConfig([]byte("sources:\n  - name: a\n    nextpage: x\n"))

		require.Error(t, err)
		assert.Equal(t, flatfinder.EINVALID, flatfinder.ErrorCode(err))
	})

	t.Run("rejects negative interval", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.ParseConfig([]byte("interval: -1m\n"))

		assert.Equal(t, flatfinder.EINVALID, flatfinder.ErrorCode(err))
	})
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("reads file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "flatfinder.yaml")
		require.NoError(t, os.WriteFile(path, []byte(immoscoutConfig), 0o644))

		cfg, err := yaml.LoadConfig(path)

		require.NoError(t, err)
		assert.Len(t, cfg.Sources, 2)
	})

	t.Run("reports missing file as not found", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))

		assert.Equal(t, flatfinder.ENOTFOUND, flatfinder.ErrorCode(err))
	})
}

func TestConfig_Sources(t *testing.T) {
	t.Parallel()

	t.Run("builds validated descriptors in order", func(t *testing.T) {
		t.Parallel()

		cfg, err := yaml.ParseConfig([]byte(immoscoutConfig))
		require.NoError(t, err)

		sources, err := cfg.Sources()

		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, "immoscout", sources[0].Name)
		assert.True(t, sources[0].Paginates())
		assert.Equal(t, 20, sources[0].MaxPages)
		assert.Equal(t, "degewo", sources[1].Name)
		assert.False(t, sources[1].Paginates())
		assert.True(t, sources[1].Render)
	})

	t.Run("wires normalizer from source settings", func(t *testing.T) {
		t.Parallel()

		cfg, err := yaml.ParseConfig([]byte(immoscoutConfig))
		require.NoError(t, err)
		sources, err := cfg.Sources()
		require.NoError(t, err)

		l, err := sources[0].Normalize(flatfinder.RawListing{
			"id":      123,
			"title":   "NEU Sunny flat",
			"address": "Main St 1 (Mitte), Berlin",
			"link":    "/expose/123",
		})

		require.NoError(t, err)
		assert.Equal(t, "123", l.ID)
		assert.Equal(t, "Sunny flat", l.Title)
		assert.Equal(t, "Main St 1", l.Address)
		assert.Equal(t, "https://www.immobilienscout24.de/expose/123", l.Link)
	})

	t.Run("merges global and source blacklists", func(t *testing.T) {
		t.Parallel()

		cfg, err := yaml.ParseConfig([]byte(immoscoutConfig))
		require.NoError(t, err)
		sources, err := cfg.Sources()
		require.NoError(t, err)

		assert.False(t, sources[0].Keep(flatfinder.Listing{Title: "Tausch gesucht"}))
		assert.False(t, sources[0].Keep(flatfinder.Listing{Title: "Zimmer in WG"}))
		assert.True(t, sources[0].Keep(flatfinder.Listing{Title: "Sunny flat"}))
		assert.False(t, sources[1].Keep(flatfinder.Listing{Title: "Tausch gesucht"}))
		assert.True(t, sources[1].Keep(flatfinder.Listing{Title: "Zimmer in WG"}))
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		t.Parallel()

		cfg := &yaml.Config{Sources: []yaml.SourceConfig{
			{Name: "a", URL: "https://example.com", Container: "li", Fields: map[string]string{"title": "h2"}},
			{Name: "a", URL: "https://example.org", Container: "li", Fields: map[string]string{"title": "h2"}},
		}}

		_, err := cfg.Sources()

		assert.Equal(t, flatfinder.ECONFLICT, flatfinder.ErrorCode(err))
	})

	t.Run("rejects invalid address pattern", func(t *testing.T) {
		t.Parallel()

		cfg := &yaml.Config{Sources: []yaml.SourceConfig{
			{Name: "a", URL: "https://example.com", Container: "li", Fields: map[string]string{"title": "h2"}, AddressStrip: "("},
		}}

		_, err := cfg.Sources()

		assert.Equal(t, flatfinder.EINVALID, flatfinder.ErrorCode(err))
	})

	t.Run("rejects invalid source", func(t *testing.T) {
		t.Parallel()

		cfg := &yaml.Config{Sources: []yaml.SourceConfig{
			{Name: "a", URL: "not a url", Container: "li", Fields: map[string]string{"title": "h2"}},
		}}

		_, err := cfg.Sources()

		assert.Equal(t, flatfinder.EINVALID, flatfinder.ErrorCode(err))
	})
}
