package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"paperbroker/internal/risk"
	"paperbroker/internal/types"
)

var validate = validator.New()

// policyFile is the on-disk shape of an optional risk/broker policy
// override. Any field omitted falls back to the built-in default.
type policyFile struct {
	RiskLimits   *risk.Limits        `json:"risk_limits,omitempty"`
	BrokerConfig *types.BrokerConfig `json:"broker_config,omitempty"`
}

// LoadRiskLimits reads path and merges it over risk.DefaultLimits(). An
// empty path or a missing file returns the defaults unchanged, matching
// libs/risk/policy.go's LoadPolicy fallback behavior.
func LoadRiskLimits(path string) (risk.Limits, error) {
	limits := risk.DefaultLimits()
	if path == "" {
		return limits, nil
	}

	if err := readPolicyFile(path, &policyFile{RiskLimits: &limits}); err != nil {
		return risk.DefaultLimits(), err
	}
	if err := validate.Struct(limits); err != nil {
		return risk.Limits{}, fmt.Errorf("config: invalid risk limits in %q: %w", path, err)
	}
	return limits, nil
}

// LoadBrokerConfig reads path and merges it over types.DefaultBrokerConfig().
func LoadBrokerConfig(path string) (types.BrokerConfig, error) {
	cfg := types.DefaultBrokerConfig()
	if path == "" {
		return cfg, nil
	}

	if err := readPolicyFile(path, &policyFile{BrokerConfig: &cfg}); err != nil {
		return types.DefaultBrokerConfig(), err
	}
	if err := validate.Struct(cfg); err != nil {
		return types.BrokerConfig{}, fmt.Errorf("config: invalid broker config in %q: %w", path, err)
	}
	return cfg, nil
}

// readPolicyFile decodes path into pf. Fields absent from the file keep the
// values pf's pointers already hold; a missing file leaves pf unchanged.
func readPolicyFile(path string, pf *policyFile) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read policy file %q: %w", path, err)
	}
	if err := json.Unmarshal(data, pf); err != nil {
		return fmt.Errorf("config: parse policy file %q: %w", path, err)
	}
	return nil
}
