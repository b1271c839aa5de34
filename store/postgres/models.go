package postgres

import (
	"strconv"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/vault/balance"
	"github.com/xraph/vault/entry"
	"github.com/xraph/vault/id"
	"github.com/xraph/vault/pool"
	"github.com/xraph/vault/types"
)

// Amounts are stored as base-10 TEXT: a uint64 does not fit BIGINT.

// ==================== Vault models ====================

type vaultModel struct {
	grove.BaseModel `grove:"table:vault_vaults"`

	ID            string    `grove:"id,pk"`
	Name          string    `grove:"name"`
	Administrator string    `grove:"administrator"`
	Account       string    `grove:"account"`
	Authority     string    `grove:"authority"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toVaultModel(p *pool.Pool) *vaultModel {
	return &vaultModel{
		ID:            p.ID.String(),
		Name:          p.Name,
		Administrator: string(p.Administrator),
		Account:       string(p.Account),
		Authority:     string(p.Authority),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func fromVaultModel(m *vaultModel) (*pool.Pool, error) {
	vaultID, err := id.ParseVaultID(m.ID)
	if err != nil {
		return nil, err
	}
	return &pool.Pool{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            vaultID,
		Name:          m.Name,
		Administrator: types.Identity(m.Administrator),
		Account:       types.Account(m.Account),
		Authority:     types.Identity(m.Authority),
	}, nil
}

// ==================== Balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:vault_balances"`

	Vault     string    `grove:"vault,pk"`
	Depositor string    `grove:"depositor,pk"`
	Amount    string    `grove:"amount"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func fromBalanceModel(m *balanceModel) (*balance.Balance, error) {
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	return &balance.Balance{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Vault:     m.Vault,
		Depositor: types.Identity(m.Depositor),
		Amount:    amount,
	}, nil
}

// ==================== Entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:vault_entries"`

	ID        string    `grove:"id,pk"`
	Vault     string    `grove:"vault"`
	Ref       string    `grove:"ref"`
	Transfer  string    `grove:"transfer"`
	Kind      string    `grove:"kind"`
	Status    string    `grove:"status"`
	Depositor string    `grove:"depositor"`
	Amount    string    `grove:"amount"`
	Balance   string    `grove:"balance"`
	Error     string    `grove:"error"`
	CreatedAt time.Time `grove:"created_at"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	return &entryModel{
		ID:        e.ID.String(),
		Vault:     e.Vault,
		Ref:       e.Ref.String(),
		Transfer:  e.Transfer.String(),
		Kind:      string(e.Kind),
		Status:    string(e.Status),
		Depositor: string(e.Depositor),
		Amount:    strconv.FormatUint(uint64(e.Amount), 10),
		Balance:   strconv.FormatUint(uint64(e.Balance), 10),
		Error:     e.Error,
		CreatedAt: e.CreatedAt,
	}
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	var ref id.EntryID
	if m.Ref != "" {
		if ref, err = id.ParseEntryID(m.Ref); err != nil {
			return nil, err
		}
	}
	var transfer id.TransferID
	if m.Transfer != "" {
		if transfer, err = id.ParseTransferID(m.Transfer); err != nil {
			return nil, err
		}
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	bal, err := types.ParseAmount(m.Balance)
	if err != nil {
		return nil, err
	}
	return &entry.Entry{
		ID:        entryID,
		Vault:     m.Vault,
		Ref:       ref,
		Transfer:  transfer,
		Kind:      entry.Kind(m.Kind),
		Status:    entry.Status(m.Status),
		Depositor: types.Identity(m.Depositor),
		Amount:    amount,
		Balance:   bal,
		Error:     m.Error,
		CreatedAt: m.CreatedAt,
	}, nil
}
