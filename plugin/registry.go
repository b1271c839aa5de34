package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/pool"
)

// DefaultHookTimeout bounds how long a single hook may run.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onVaultInitialized []OnVaultInitialized
	onDeposited        []OnDeposited
	onWithdrawn        []OnWithdrawn
	onOperationFailed  []OnOperationFailed
	onCompensated      []OnCompensated
	onDiscrepancy      []OnDiscrepancy
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin %q already registered", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if h, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, h)
	}
	if h, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, h)
	}
	if h, ok := p.(OnVaultInitialized); ok {
		r.onVaultInitialized = append(r.onVaultInitialized, h)
	}
	if h, ok := p.(OnDeposited); ok {
		r.onDeposited = append(r.onDeposited, h)
	}
	if h, ok := p.(OnWithdrawn); ok {
		r.onWithdrawn = append(r.onWithdrawn, h)
	}
	if h, ok := p.(OnOperationFailed); ok {
		r.onOperationFailed = append(r.onOperationFailed, h)
	}
	if h, ok := p.(OnCompensated); ok {
		r.onCompensated = append(r.onCompensated, h)
	}
	if h, ok := p.(OnDiscrepancy); ok {
		r.onDiscrepancy = append(r.onDiscrepancy, h)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnVaultInitialized)(nil)).Elem(), "OnVaultInitialized")
	checkInterface(reflect.TypeOf((*OnDeposited)(nil)).Elem(), "OnDeposited")
	checkInterface(reflect.TypeOf((*OnWithdrawn)(nil)).Elem(), "OnWithdrawn")
	checkInterface(reflect.TypeOf((*OnOperationFailed)(nil)).Elem(), "OnOperationFailed")
	checkInterface(reflect.TypeOf((*OnCompensated)(nil)).Elem(), "OnCompensated")
	checkInterface(reflect.TypeOf((*OnDiscrepancy)(nil)).Elem(), "OnDiscrepancy")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs fn for every hook in hooks, logging failures.
func emit[H Plugin](r *Registry, ctx context.Context, event string, hooks []H, fn func(H) error) {
	for _, h := range hooks {
		if err := r.callWithTimeout(ctx, h.Name(), func() error {
			return fn(h)
		}); err != nil {
			r.logger.Warn("plugin hook failed",
				"plugin", h.Name(),
				"hook", event,
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, svc any) {
	r.mu.RLock()
	hooks := r.onInit
	r.mu.RUnlock()

	emit(r, ctx, "OnInit", hooks, func(h OnInit) error {
		return h.OnInit(ctx, svc)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	hooks := r.onShutdown
	r.mu.RUnlock()

	emit(r, ctx, "OnShutdown", hooks, func(h OnShutdown) error {
		return h.OnShutdown(ctx)
	})
}

// EmitVaultInitialized emits a vault initialized event.
func (r *Registry) EmitVaultInitialized(ctx context.Context, p *pool.Pool) {
	r.mu.RLock()
	hooks := r.onVaultInitialized
	r.mu.RUnlock()

	emit(r, ctx, "OnVaultInitialized", hooks, func(h OnVaultInitialized) error {
		return h.OnVaultInitialized(ctx, p)
	})
}

// EmitDeposited emits a deposit completed event.
func (r *Registry) EmitDeposited(ctx context.Context, e *entry.Entry) {
	r.mu.RLock()
	hooks := r.onDeposited
	r.mu.RUnlock()

	emit(r, ctx, "OnDeposited", hooks, func(h OnDeposited) error {
		return h.OnDeposited(ctx, e)
	})
}

// EmitWithdrawn emits a withdrawal completed event.
func (r *Registry) EmitWithdrawn(ctx context.Context, e *entry.Entry) {
	r.mu.RLock()
	hooks := r.onWithdrawn
	r.mu.RUnlock()

	emit(r, ctx, "OnWithdrawn", hooks, func(h OnWithdrawn) error {
		return h.OnWithdrawn(ctx, e)
	})
}

// EmitOperationFailed emits an operation failed event.
func (r *Registry) EmitOperationFailed(ctx context.Context, e *entry.Entry, opErr error) {
	r.mu.RLock()
	hooks := r.onOperationFailed
	r.mu.RUnlock()

	emit(r, ctx, "OnOperationFailed", hooks, func(h OnOperationFailed) error {
		return h.OnOperationFailed(ctx, e, opErr)
	})
}

// EmitCompensated emits a compensation event.
func (r *Registry) EmitCompensated(ctx context.Context, e *entry.Entry) {
	r.mu.RLock()
	hooks := r.onCompensated
	r.mu.RUnlock()

	emit(r, ctx, "OnCompensated", hooks, func(h OnCompensated) error {
		return h.OnCompensated(ctx, e)
	})
}

// EmitDiscrepancy emits a discrepancy event.
func (r *Registry) EmitDiscrepancy(ctx context.Context, d *Discrepancy) {
	r.mu.RLock()
	hooks := r.onDiscrepancy
	r.mu.RUnlock()

	emit(r, ctx, "OnDiscrepancy", hooks, func(h OnDiscrepancy) error {
		return h.OnDiscrepancy(ctx, d)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block a vault operation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
