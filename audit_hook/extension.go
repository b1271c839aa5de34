// Package audithook bridges vault events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/vault"
	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/plugin"
	"github.com/xraph/vault/pool"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnVaultInitialized = (*Extension)(nil)
	_ plugin.OnDeposited        = (*Extension)(nil)
	_ plugin.OnWithdrawn        = (*Extension)(nil)
	_ plugin.OnOperationFailed  = (*Extension)(nil)
	_ plugin.OnCompensated      = (*Extension)(nil)
	_ plugin.OnDiscrepancy      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges vault events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Vault hooks
// ──────────────────────────────────────────────────

// OnVaultInitialized implements plugin.OnVaultInitialized.
func (e *Extension) OnVaultInitialized(ctx context.Context, p *pool.Pool) error {
	return e.record(ctx, ActionVaultInitialized, SeverityInfo, OutcomeSuccess,
		ResourceVault, p.ID.String(), CategoryCustody, nil,
		"vault", p.Name,
		"administrator", string(p.Administrator),
		"account", string(p.Account),
	)
}

// OnDiscrepancy implements plugin.OnDiscrepancy.
func (e *Extension) OnDiscrepancy(ctx context.Context, d *plugin.Discrepancy) error {
	return e.record(ctx, ActionDiscrepancy, SeverityCritical, OutcomeFailure,
		ResourceVault, d.Vault, CategoryAccounting, errors.New(d.Reason),
		"depositor", string(d.Depositor),
		"amount", d.Amount.String(),
		"tracked", d.Tracked.String(),
		"holdings", d.Holdings.String(),
	)
}

// ──────────────────────────────────────────────────
// Balance hooks
// ──────────────────────────────────────────────────

// OnDeposited implements plugin.OnDeposited.
func (e *Extension) OnDeposited(ctx context.Context, en *entry.Entry) error {
	return e.recordEntry(ctx, ActionDeposited, SeverityInfo, OutcomeSuccess, en, nil)
}

// OnWithdrawn implements plugin.OnWithdrawn.
func (e *Extension) OnWithdrawn(ctx context.Context, en *entry.Entry) error {
	return e.recordEntry(ctx, ActionWithdrawn, SeverityInfo, OutcomeSuccess, en, nil)
}

// OnOperationFailed implements plugin.OnOperationFailed. Rejections are
// access or validation failures; anything else is an operational failure.
func (e *Extension) OnOperationFailed(ctx context.Context, en *entry.Entry, err error) error {
	switch {
	case errors.Is(err, vault.ErrInconsistent):
		return e.recordEntry(ctx, ActionFailed, SeverityCritical, OutcomePartial, en, err)
	case vault.IsRejection(err):
		return e.recordEntry(ctx, ActionRejected, SeverityWarning, OutcomeFailure, en, err)
	default:
		return e.recordEntry(ctx, ActionFailed, SeverityError, OutcomeFailure, en, err)
	}
}

// OnCompensated implements plugin.OnCompensated.
func (e *Extension) OnCompensated(ctx context.Context, en *entry.Entry) error {
	action := ActionCompensated
	if en.Kind == entry.KindReversal {
		action = ActionReversed
	}
	return e.recordEntry(ctx, action, SeverityWarning, OutcomeSuccess, en, nil)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (e *Extension) recordEntry(ctx context.Context, action, severity, outcome string, en *entry.Entry, err error) error {
	category := CategoryCustody
	if errors.Is(err, vault.ErrUnauthorized) {
		category = CategoryAccess
	}
	return e.record(ctx, action, severity, outcome,
		ResourceBalance, en.ID.String(), category, err,
		"vault", en.Vault,
		"kind", string(en.Kind),
		"depositor", string(en.Depositor),
		"amount", en.Amount.String(),
		"balance", en.Balance.String(),
		"transfer", en.Transfer.String(),
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
