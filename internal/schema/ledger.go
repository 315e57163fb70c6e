package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerKind distinguishes funds flowing into the account from funds leaving it.
type LedgerKind string

const (
	// LedgerCredit records a deposit.
	LedgerCredit LedgerKind = "credit"
	// LedgerDebit records a withdrawal.
	LedgerDebit LedgerKind = "debit"
)

// Valid reports whether the ledger kind is recognised.
func (k LedgerKind) Valid() bool {
	switch k {
	case LedgerCredit, LedgerDebit:
		return true
	default:
		return false
	}
}

// LedgerEntry is an immutable deposit or withdrawal record. Uniqueness is
// enforced on RefID: "{exchange}|{txid}" for deposits and
// "{exchange}|{withdrawal_number}" for withdrawals.
type LedgerEntry struct {
	RefID     string
	Kind      LedgerKind
	Exchange  string
	Account   string
	Commodity string // canonical
	Amount    decimal.Decimal
	Address   string
	Network   string
	Status    string
	Time      time.Time
}
