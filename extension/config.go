package extension

import (
	"fmt"
	"time"
)

// Config holds the vault extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.vault" or "vault" keys).
type Config struct {
	// Name identifies the vault record and its lock key (default: "default").
	Name string `json:"name" mapstructure:"name" yaml:"name"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// TransferTimeout bounds a single gateway transfer (default: 30s).
	// A transfer that times out is reported as unavailable.
	TransferTimeout time.Duration `json:"transfer_timeout" mapstructure:"transfer_timeout" yaml:"transfer_timeout"`

	// DisableBreaker stops the extension from wrapping the gateway in a
	// circuit breaker.
	DisableBreaker bool `json:"disable_breaker" mapstructure:"disable_breaker" yaml:"disable_breaker"`

	// RedisAddrs switches the vault lock to a redsync lock over these redis
	// nodes. Empty means an in-process lock.
	RedisAddrs []string `json:"redis_addrs" mapstructure:"redis_addrs" yaml:"redis_addrs"`

	// LockExpiry is how long a redis vault lock lives without being extended
	// (default: 90s). It must be more than twice TransferTimeout so a deposit
	// and its reversal fit within one lease period.
	LockExpiry time.Duration `json:"lock_expiry" mapstructure:"lock_expiry" yaml:"lock_expiry"`

	// Decimals is the number of decimal places of the asset's smallest unit,
	// used when amounts are logged and reported.
	Decimals int32 `json:"decimals" mapstructure:"decimals" yaml:"decimals"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:            "default",
		TransferTimeout: 30 * time.Second,
		LockExpiry:      90 * time.Second,
	}
}

// validateLock checks that a redis lock whose extensions stall still covers
// a transfer followed by its reversal.
func (c Config) validateLock() error {
	if c.LockExpiry <= 2*c.TransferTimeout {
		return fmt.Errorf("vault: lock_expiry %s must be more than twice transfer_timeout %s",
			c.LockExpiry, c.TransferTimeout)
	}
	return nil
}
