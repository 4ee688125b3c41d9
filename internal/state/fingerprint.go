package state

import (
	"fmt"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// ConfigFingerprint hashes the YAML encoding of a resolved config. Map keys
// are encoded sorted, so equal configs always hash equally.
func ConfigFingerprint(cfg any) (string, error) {
	if cfg == nil {
		return fmt.Sprintf("%016x", xxh3.Hash(nil)), nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data)), nil
}
