package extension

import (
	"time"

	"github.com/xraph/vault"
	"github.com/xraph/vault/gateway"
	"github.com/xraph/vault/plugin"
	"github.com/xraph/vault/store"
)

// Option configures the vault Forge extension.
type Option func(*Extension)

// WithStore sets the store for the vault service.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGateway sets the asset-transfer gateway. It is required.
func WithGateway(gw gateway.Gateway) Option {
	return func(e *Extension) {
		e.gateway = gw
	}
}

// WithVaultOption passes a vault.Option through to the underlying service.
func WithVaultOption(opt vault.Option) Option {
	return func(e *Extension) {
		e.vaultOpts = append(e.vaultOpts, opt)
	}
}

// WithPlugin registers a vault plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.vaultOpts = append(e.vaultOpts, vault.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithName sets the vault name.
func WithName(name string) Option {
	return func(e *Extension) { e.config.Name = name }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableBreaker leaves the gateway unwrapped.
func WithDisableBreaker() Option {
	return func(e *Extension) { e.config.DisableBreaker = true }
}

// WithTransferTimeout bounds each gateway transfer.
func WithTransferTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.TransferTimeout = d }
}

// WithRedisLock serializes vault operations across processes through redis.
func WithRedisLock(addrs ...string) Option {
	return func(e *Extension) { e.config.RedisAddrs = addrs }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
