package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/vault/plugin"
	"github.com/xraph/vault/types"
)

// Report compares the ledger with the pool's real holdings.
type Report struct {
	Vault      string       `json:"vault"`
	Depositors int          `json:"depositors"`
	Tracked    types.Amount `json:"tracked"`
	Holdings   types.Amount `json:"holdings"`
	// Surplus is holdings above the tracked total, such as outside donations.
	Surplus types.Amount `json:"surplus"`
	// Shortfall is tracked balance the pool cannot cover. Non-zero means the
	// vault is in discrepancy.
	Shortfall types.Amount `json:"shortfall"`
	// Decimals is the asset precision used by Format.
	Decimals  int32     `json:"decimals"`
	CheckedAt time.Time `json:"checked_at"`
}

// Balanced reports whether every tracked unit is backed by the pool.
func (r *Report) Balanced() bool { return r.Shortfall.IsZero() }

// Format renders an amount from the report in whole asset units.
func (r *Report) Format(a types.Amount) string { return a.Format(r.Decimals) }

// Reconcile sums every tracked balance and compares it with the pool
// account's holdings at the gateway. A surplus is reported; a shortfall
// returns the report together with ErrDiscrepancy.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	var report *Report
	err := s.locked(ctx, func() error {
		p, err := s.loadPool(ctx)
		if err != nil {
			return err
		}
		tracked, n, err := s.ledger.Total(ctx)
		if err != nil {
			return err
		}

		gctx, cancel := context.WithTimeout(ctx, s.transferTimeout)
		defer cancel()
		holdings, err := s.gateway.Balance(gctx, p.Account)
		if err != nil {
			return fmt.Errorf("%w: read pool holdings: %w", ErrUnavailable, err)
		}

		report = &Report{
			Vault:      s.name,
			Depositors: n,
			Tracked:    tracked,
			Holdings:   holdings,
			Decimals:   s.decimals,
			CheckedAt:  time.Now().UTC(),
		}
		if holdings >= tracked {
			report.Surplus = holdings - tracked
		} else {
			report.Shortfall = tracked - holdings
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Balanced() {
		derr := fmt.Errorf("%w: tracked %d, holdings %d", ErrDiscrepancy, report.Tracked, report.Holdings)
		s.plugins.EmitDiscrepancy(context.WithoutCancel(ctx), &plugin.Discrepancy{
			Vault:    s.name,
			Tracked:  report.Tracked,
			Holdings: report.Holdings,
			Reason:   derr.Error(),
		})
		s.logger.Error("vault reconciliation failed",
			"vault", s.name,
			"tracked", report.Format(report.Tracked),
			"holdings", report.Format(report.Holdings),
			"shortfall", report.Format(report.Shortfall),
		)
		return report, derr
	}

	s.logger.Info("vault reconciled",
		"vault", s.name,
		"depositors", report.Depositors,
		"tracked", report.Format(report.Tracked),
		"holdings", report.Format(report.Holdings),
		"surplus", report.Format(report.Surplus),
	)
	return report, nil
}
