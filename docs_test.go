package vault_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/vault"
	gwmemory "github.com/xraph/vault/gateway/memory"
	"github.com/xraph/vault/store/memory"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		// In-process gateway for the demo; production wires a real transfer backend.
		gw := gwmemory.New()
		gw.Open("pool-account", "custodian", 0)
		gw.Open("alice", "alice", 500)

		svc := vault.New(memory.New(), gw,
			vault.WithLogger(slog.Default()),
			vault.WithCustody("pool-account", "custodian"),
		)
		if err := svc.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer svc.Stop()

		if _, err := svc.Initialize(ctx, "admin"); err != nil {
			t.Fatal(err)
		}

		balance, err := svc.Deposit(ctx, "alice", 100)
		if err != nil {
			t.Fatal(err)
		}
		if balance != 100 {
			t.Errorf("expected balance 100, got %d", balance)
		}

		t.Logf("alice holds %s units", balance.Format(2))
	})

	t.Run("ErrorClassificationExample", func(t *testing.T) {
		ctx := context.Background()
		gw := gwmemory.New()
		gw.Open("pool-account", "custodian", 0)

		svc := vault.New(memory.New(), gw, vault.WithCustody("pool-account", "custodian"))
		if _, err := svc.Initialize(ctx, "admin"); err != nil {
			t.Fatal(err)
		}

		_, err := svc.Withdraw(ctx, "bob", 10)
		if !vault.IsRejection(err) {
			t.Errorf("expected a rejection, got %v", err)
		}
		if vault.IsRetryable(err) {
			t.Error("a rejection must not be retryable")
		}
	})
}
