// Package extension provides the Forge extension adapter for the vault.
//
// It implements the forge.Extension interface to integrate the vault
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.vault" or "vault" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	goredislib "github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/vault"
	"github.com/xraph/vault/gateway"
	"github.com/xraph/vault/gateway/breaker"
	"github.com/xraph/vault/lock/redislock"
	"github.com/xraph/vault/store"
	"github.com/xraph/vault/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "vault"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Custodial pooled-asset vault"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the vault service as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config    Config
	service   *vault.Service
	store     store.Store
	gateway   gateway.Gateway
	redis     goredislib.UniversalClient
	vaultOpts []vault.Option
}

// New creates a new vault Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Service returns the underlying vault service.
// This is nil until Register is called.
func (e *Extension) Service() *vault.Service { return e.service }

// Register implements [forge.Extension]. It loads configuration,
// builds the vault service, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.gateway == nil {
		return errors.New("vault: extension requires a transfer gateway; use WithGateway")
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := e.buildVaultOpts()
	if err != nil {
		return err
	}

	e.service = vault.New(e.store, e.gatewayFor(), opts...)

	return vessel.Provide(fapp.Container(), func() (*vault.Service, error) {
		return e.service, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.service == nil {
		return errors.New("vault: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.service.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var errs []error
	if e.service != nil {
		errs = append(errs, e.service.Stop())
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.service == nil {
		return errors.New("vault: service not initialized")
	}
	if err := e.service.Health(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		return e.redis.Ping(ctx).Err()
	}
	return nil
}

// gatewayFor wraps the configured gateway in a circuit breaker unless disabled.
func (e *Extension) gatewayFor() gateway.Gateway {
	if e.config.DisableBreaker {
		return e.gateway
	}
	return breaker.New(e.config.Name, e.gateway, breaker.DefaultConfig())
}

// buildVaultOpts constructs vault.Option values from the resolved config.
func (e *Extension) buildVaultOpts() ([]vault.Option, error) {
	opts := make([]vault.Option, 0, len(e.vaultOpts)+4)

	opts = append(opts,
		vault.WithName(e.config.Name),
		vault.WithTransferTimeout(e.config.TransferTimeout),
		vault.WithDecimals(e.config.Decimals),
	)

	if len(e.config.RedisAddrs) > 0 {
		if err := e.config.validateLock(); err != nil {
			return nil, err
		}
		e.redis = goredislib.NewUniversalClient(&goredislib.UniversalOptions{
			Addrs: e.config.RedisAddrs,
		})
		lockOpts := redislock.DefaultOptions()
		lockOpts.Expiry = e.config.LockExpiry
		locker, err := redislock.New(lockOpts, e.redis)
		if err != nil {
			return nil, fmt.Errorf("vault: redis lock: %w", err)
		}
		opts = append(opts, vault.WithLocker(locker))
	}

	// Append any pass-through vault options.
	opts = append(opts, e.vaultOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("vault: configuration is required but not found in config files; " +
				"ensure 'extensions.vault' or 'vault' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("vault: configuration loaded",
		forge.F("name", e.config.Name),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_breaker", e.config.DisableBreaker),
		forge.F("transfer_timeout", e.config.TransferTimeout),
		forge.F("redis_addrs", e.config.RedisAddrs),
		forge.F("lock_expiry", e.config.LockExpiry),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.vault", "vault"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("vault: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("vault: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.TransferTimeout == 0 {
		cfg.TransferTimeout = defaults.TransferTimeout
	}
	if cfg.LockExpiry == 0 {
		cfg.LockExpiry = defaults.LockExpiry
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableBreaker {
		yamlConfig.DisableBreaker = true
	}

	if yamlConfig.Name == "" {
		yamlConfig.Name = programmaticConfig.Name
	}
	if len(yamlConfig.RedisAddrs) == 0 {
		yamlConfig.RedisAddrs = programmaticConfig.RedisAddrs
	}
	if yamlConfig.TransferTimeout == 0 {
		yamlConfig.TransferTimeout = programmaticConfig.TransferTimeout
	}
	if yamlConfig.LockExpiry == 0 {
		yamlConfig.LockExpiry = programmaticConfig.LockExpiry
	}
	if yamlConfig.Decimals == 0 {
		yamlConfig.Decimals = programmaticConfig.Decimals
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
