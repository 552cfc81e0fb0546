package seqconf

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/magiconair/properties"
)

var Logger = logger.GetLogger("seqconf")

// DefaultFileName is the name of the sequence mapping file used when no path is configured.
const DefaultFileName = "sequence_db_conf.properties"

// LoadProperties reads a sequence mapping (sequence name to backend target) from a
// properties file. If lowerCaseKeys is set all sequence names are lower-cased.
func LoadProperties(path string, lowerCaseKeys bool) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sequence properties not found %s: %w", path, err)
	}
	mapping, err := ParseProperties(string(data), lowerCaseKeys)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mapping, nil
}

// ParseProperties parses properties text into a sequence mapping. Values are taken
// literally, ${...} is not expanded.
func ParseProperties(text string, lowerCaseKeys bool) (map[string]string, error) {
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("invalid sequence properties: %w", err)
	}

	mapping := make(map[string]string, p.Len())
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		name, target := strings.TrimSpace(key), strings.TrimSpace(value)
		if name == "" {
			return nil, fmt.Errorf("invalid sequence properties: empty sequence name")
		}
		if target == "" {
			return nil, fmt.Errorf("invalid sequence properties: no target for sequence %s", name)
		}
		if lowerCaseKeys {
			name = strings.ToLower(name)
		}
		if prev, ok := mapping[name]; ok && prev != target {
			return nil, fmt.Errorf("invalid sequence properties: sequence %s maps to %s and %s", name, prev, target)
		}
		mapping[name] = target
	}
	return mapping, nil
}

// FormatProperties renders a mapping as properties text, sorted by name.
func FormatProperties(mapping map[string]string) string {
	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%s\n", name, mapping[name])
	}
	return b.String()
}
