// Package entry defines the vault journal: an append-only record of every
// balance-affecting operation and its outcome.
package entry

import (
	"time"

	"github.com/xraph/vault/id"
	"github.com/xraph/vault/types"
)

type Entry struct {
	ID    id.EntryID `json:"id"`
	Vault string     `json:"vault"`
	// Ref points at the entry a compensation or reversal undoes.
	Ref id.EntryID `json:"ref"`
	// Transfer is the reference of the gateway transfer this entry attempted.
	Transfer  id.TransferID  `json:"transfer"`
	Kind      Kind           `json:"kind"`
	Status    Status         `json:"status"`
	Depositor types.Identity `json:"depositor"`
	Amount    types.Amount   `json:"amount"`
	// Balance is the tracked balance after the operation.
	Balance   types.Amount `json:"balance"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	// KindCompensation re-credits a debit whose outbound transfer failed.
	KindCompensation Kind = "compensation"
	// KindReversal returns a deposit transfer whose credit could not be committed.
	KindReversal Kind = "reversal"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)
