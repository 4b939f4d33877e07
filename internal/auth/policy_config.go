package auth

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/wolfeidau/guildhall/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed authz.rego
var defaultModule string

// PolicyConfig is the authorization policy file.
//
//	users:
//	  user-123: [admin]
//	tiers:
//	  premium: [player, premium]
//	module: |
//	  package guildhall.authz
//	  ...
type PolicyConfig struct {
	Users  map[string][]string `yaml:"users"`
	Tiers  map[string][]string `yaml:"tiers"`
	Module string              `yaml:"module"`
}

// DefaultPolicyConfig returns the built-in tier roles and rego module.
func DefaultPolicyConfig() *PolicyConfig {
	return &PolicyConfig{
		Tiers: map[string][]string{
			models.TierBasic.String():         {"player"},
			models.TierPremium.String():       {"player", "premium"},
			models.TierModerator.String():     {"player", "moderator"},
			models.TierAdministrator.String(): {"player", "moderator", "admin"},
		},
		Module: defaultModule,
	}
}

// LoadPolicyConfig reads a policy file. Sections the file omits fall back
// to the defaults.
func LoadPolicyConfig(path string) (*PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	defaults := DefaultPolicyConfig()
	if cfg.Tiers == nil {
		cfg.Tiers = defaults.Tiers
	}
	if cfg.Module == "" {
		cfg.Module = defaults.Module
	}

	if _, err := cfg.tierRoles(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *PolicyConfig) tierRoles() (map[models.AccountTier][]string, error) {
	out := make(map[models.AccountTier][]string, len(c.Tiers))
	for name, roles := range c.Tiers {
		tier, err := models.ParseAccountTier(name)
		if err != nil {
			return nil, err
		}
		out[tier] = roles
	}
	return out, nil
}
