package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Secrets matches the structure of secrets/demo.yaml and secrets/real.yaml.
// It is kept out of Config so a credential dump never ends up in the same
// struct that gets logged or displayed on the startup banner.
type Secrets struct {
	KeySlots []KeySlot `yaml:"key_slots"`
}

// KeySlot is one set of exchange credentials. The Gate actor's
// ControlSetKeySlot directive switches which slot it signs with by index,
// without a restart.
type KeySlot struct {
	Label      string `yaml:"label"`
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	Passphrase string `yaml:"passphrase,omitempty"`
}

// LoadSecrets loads credentials from a separate YAML file. It returns an
// error if the file is missing: secrets never get a silent default.
func LoadSecrets(path string) (*Secrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read secrets %s: %w", path, err)
	}

	var s Secrets
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parse secrets %s: %w", path, err)
	}
	if len(s.KeySlots) == 0 {
		return nil, fmt.Errorf("config: secrets %s declares no key_slots", path)
	}

	if key := os.Getenv("SPOTMAKER_API_KEY"); key != "" {
		s.KeySlots[0].APIKey = key
	}
	if secret := os.Getenv("SPOTMAKER_API_SECRET"); secret != "" {
		s.KeySlots[0].APISecret = secret
	}
	if pass := os.Getenv("SPOTMAKER_API_PASSPHRASE"); pass != "" {
		s.KeySlots[0].Passphrase = pass
	}

	return &s, nil
}
