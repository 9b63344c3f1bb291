package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/perch/internal/domain"
)

// SeedFile is the on-disk layout of a rules file.
//
//	rules:
//	  - id: late-evening
//	    expression: 'start_time >= "19:00"'
//	    floor: 40
//	    reason: WEEKEND_PREMIUM
//	    enabled: true
type SeedFile struct {
	Rules []*domain.RuleConfig `yaml:"rules"`
}

// LoadSeedFile reads rule configs from a YAML file.
// An empty path or a missing file yields no rules. Invalid YAML returns an error.
func LoadSeedFile(path string) ([]*domain.RuleConfig, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	for i, cfg := range seed.Rules {
		if cfg == nil {
			return nil, fmt.Errorf("rules file %s: entry %d is empty", path, i)
		}
		cfg.TenantID = domain.GlobalTenantID
	}

	return seed.Rules, nil
}

// Loader returns the full set of rule configs to run.
type Loader func(ctx context.Context) ([]*domain.RuleConfig, error)

// RuleLister is the slice of the repository a Loader needs.
type RuleLister interface {
	ListRuleConfigs(ctx context.Context, tenantID string) ([]*domain.RuleConfig, error)
}

// NewLoader merges stored rules with the seed file. Stored rules take
// precedence when both define the same ID. repo may be nil.
func NewLoader(repo RuleLister, seedPath string) Loader {
	return func(ctx context.Context) ([]*domain.RuleConfig, error) {
		seeded, err := LoadSeedFile(seedPath)
		if err != nil {
			return nil, err
		}

		byID := make(map[string]*domain.RuleConfig, len(seeded))
		order := make([]string, 0, len(seeded))
		for _, cfg := range seeded {
			if _, ok := byID[cfg.ID]; !ok {
				order = append(order, cfg.ID)
			}
			byID[cfg.ID] = cfg
		}

		if repo != nil {
			stored, err := repo.ListRuleConfigs(ctx, domain.GlobalTenantID)
			if err != nil {
				return nil, fmt.Errorf("failed to list stored rules: %w", err)
			}
			for _, cfg := range stored {
				if _, ok := byID[cfg.ID]; !ok {
					order = append(order, cfg.ID)
				}
				byID[cfg.ID] = cfg
			}
		}

		configs := make([]*domain.RuleConfig, 0, len(order))
		for _, id := range order {
			configs = append(configs, byID[id])
		}
		return configs, nil
	}
}

// Reload loads the current rule set and swaps it into the engine.
func (e *Engine) Reload(ctx context.Context, load Loader) (int, error) {
	configs, err := load(ctx)
	if err != nil {
		return 0, err
	}
	if err := e.ReloadRules(configs); err != nil {
		return 0, err
	}
	return e.RulesCount(), nil
}
