package adapter

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Config is a profile target: connection fields every backend understands
// plus backend-specific keys in Params.
type Config struct {
	Type     string            `mapstructure:"type"`
	Path     string            `mapstructure:"path"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Schema   string            `mapstructure:"schema"`
	Username string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Threads  int               `mapstructure:"threads"`
	Options  map[string]string `mapstructure:"options"`
	// Params holds every key not mapped to a field above.
	Params map[string]any `mapstructure:",remain"`
}

// ConfigFromMap decodes a raw target mapping.
func ConfigFromMap(raw map[string]any) (Config, error) {
	var cfg Config
	if err := DecodeParams(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecodeParams decodes backend-specific params into out, converting
// strings to numbers and booleans where the target field needs it.
func DecodeParams(params map[string]any, out any) error {
	if params == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid adapter params: %w", err)
	}
	return nil
}

// Param returns a backend param as a string.
func (c Config) Param(key string) (string, bool) {
	v, ok := c.Params[key]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}
