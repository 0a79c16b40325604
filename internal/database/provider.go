package database

import (
	"errors"
	"sync"
)

// ErrNoLedger is returned when no ledger backend has been registered.
var ErrNoLedger = errors.New("attendance ledger not configured (set LEDGER_DATABASE_URL)")

var (
	ledgerFactory func() Ledger
	ledgerMu      sync.RWMutex
)

// RegisterLedgerBackend registers the ledger constructor.
// This is called by the postgres package to avoid import cycles.
func RegisterLedgerBackend(factory func() Ledger) {
	ledgerMu.Lock()
	defer ledgerMu.Unlock()
	ledgerFactory = factory
}

// GetLedger returns the registered ledger.
func GetLedger() (Ledger, error) {
	ledgerMu.RLock()
	defer ledgerMu.RUnlock()
	if ledgerFactory == nil {
		return nil, ErrNoLedger
	}
	return ledgerFactory(), nil
}

// IsLedgerAvailable returns true if a ledger backend is registered.
func IsLedgerAvailable() bool {
	ledgerMu.RLock()
	defer ledgerMu.RUnlock()
	return ledgerFactory != nil
}
