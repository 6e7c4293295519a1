package settings

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ExportYAML renders s as a YAML document.
func ExportYAML(s Settings) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("settings: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ImportYAML parses a YAML document on top of Defaults and validates it.
func ImportYAML(data []byte) (Settings, error) {
	out := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		return Settings{}, fmt.Errorf("settings: decode yaml: %w", err)
	}
	if err := out.Validate(); err != nil {
		return Settings{}, err
	}
	return out, nil
}
