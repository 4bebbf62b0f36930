package story

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Catalog formats understood by ParseCatalog
const (
	FormatTOML = "toml"
	FormatJSON = "json"
)

// Catalog is a file of story event definitions
type Catalog struct {
	Events []Definition `json:"events" toml:"events"`
}

// FormatForPath picks the catalog format from a file extension
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported catalog extension %q", filepath.Ext(path))
	}
}

// ParseCatalog decodes a catalog, rejecting unknown keys
func ParseCatalog(data []byte, format string) (*Catalog, error) {
	var c Catalog
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, fmt.Errorf("unknown catalog keys: %s", strict.String())
			}
			return nil, fmt.Errorf("failed to decode toml catalog: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("failed to decode json catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
	return &c, nil
}

// Validate checks each definition and that names are unique.
// The returned map is keyed by event name; an empty map means the catalog is clean.
func (c *Catalog) Validate() map[string]error {
	problems := make(map[string]error)
	seen := make(map[string]int)
	for i, d := range c.Events {
		key := d.Name
		if key == "" {
			key = fmt.Sprintf("events[%d]", i)
		}
		if n := seen[d.Name]; n > 0 && d.Name != "" {
			problems[fmt.Sprintf("%s#%d", key, n+1)] = fmt.Errorf("duplicate event name %q", d.Name)
		}
		seen[d.Name]++
		if err := d.Validate(); err != nil {
			if _, dup := problems[key]; !dup {
				problems[key] = err
			}
		}
	}
	return problems
}
