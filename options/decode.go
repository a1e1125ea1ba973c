package options

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeSourceConfig reads a source configuration from loosely typed
// metadata, such as a field definition decoded from YAML or JSON. Numbers
// given as strings and single filters given as objects are accepted.
func DecodeSourceConfig(raw map[string]any) (SourceConfig, error) {
	var cfg SourceConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return SourceConfig{}, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return SourceConfig{}, fmt.Errorf("invalid option source: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return SourceConfig{}, err
	}
	return cfg, nil
}
