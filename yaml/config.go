// Package yaml loads source descriptors from a YAML configuration file.
package yaml

import (
	"bytes"
	"errors"
	"io"
	"os"
	"regexp"
	"slices"
	"time"

	"github.com/fwojciec/flatfinder"
	yamlv3 "gopkg.in/yaml.v3"
)

// Config is the configuration document.
type Config struct {
	// Interval between runs of the watch command. Zero leaves the default.
	Interval time.Duration `yaml:"interval"`

	// Blacklist words are rejected in the titles of every source.
	Blacklist []string `yaml:"blacklist"`

	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig describes one listings site.
type SourceConfig struct {
	Name      string            `yaml:"name"`
	URL       string            `yaml:"url"`
	Container string            `yaml:"container"`
	NextPage  string            `yaml:"next_page"`
	MaxPages  int               `yaml:"max_pages"`
	Render    bool              `yaml:"render"`
	Fields    map[string]string `yaml:"fields"`

	// IDField names the field holding the listing id. Listings without one
	// get an id derived from their link.
	IDField string `yaml:"id_field"`

	// Blacklist words are rejected in titles in addition to the global ones.
	Blacklist []string `yaml:"blacklist"`

	// TitleStrip lists literal substrings removed from titles.
	TitleStrip []string `yaml:"title_strip"`

	// AddressStrip is a regular expression removed from addresses.
	AddressStrip string `yaml:"address_strip"`
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, flatfinder.Errorf(flatfinder.ENOTFOUND, "config file %s not found", path)
	} else if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses a configuration document. Unknown keys are rejected
// so typos in selectors do not silently disable a field.
func ParseConfig(data []byte) (*Config, error) {
	dec := yamlv3.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, flatfinder.Errorf(flatfinder.EINVALID, "invalid config: %v", err)
	}
	if cfg.Interval < 0 {
		return nil, flatfinder.Errorf(flatfinder.EINVALID, "interval must not be negative")
	}
	return &cfg, nil
}

// Sources builds and validates a descriptor for every configured source,
// in document order. Duplicate names are ECONFLICT errors.
func (c *Config) Sources() ([]*flatfinder.Source, error) {
	seen := make(map[string]bool, len(c.Sources))
	sources := make([]*flatfinder.Source, 0, len(c.Sources))
	for _, sc := range c.Sources {
		if seen[sc.Name] {
			return nil, flatfinder.Errorf(flatfinder.ECONFLICT, "duplicate source name %q", sc.Name)
		}
		seen[sc.Name] = true

		s, err := sc.source(c.Blacklist)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, nil
}

func (sc SourceConfig) source(globalBlacklist []string) (*flatfinder.Source, error) {
	normalizer := &flatfinder.FieldNormalizer{
		IDField:    sc.IDField,
		BaseURL:    sc.URL,
		TitleStrip: sc.TitleStrip,
	}
	if sc.AddressStrip != "" {
		re, err := regexp.Compile(sc.AddressStrip)
		if err != nil {
			return nil, flatfinder.Errorf(flatfinder.EINVALID, "source %s: invalid address_strip: %v", sc.Name, err)
		}
		normalizer.AddressStrip = re
	}

	filter, err := flatfinder.TitleBlacklist(slices.Concat(globalBlacklist, sc.Blacklist))
	if err != nil {
		return nil, flatfinder.Errorf(flatfinder.EINVALID, "source %s: %s", sc.Name, flatfinder.ErrorMessage(err))
	}

	s := &flatfinder.Source{
		Name:      sc.Name,
		URL:       sc.URL,
		Container: sc.Container,
		Fields:    sc.Fields,
		NextPage:  sc.NextPage,
		MaxPages:  sc.MaxPages,
		Render:    sc.Render,
		Normalize: normalizer.Normalize,
		Filter:    filter,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
