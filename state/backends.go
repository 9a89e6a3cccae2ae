package state

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInsufficientBalance marks a value transfer exceeding the payer's
	// recorded balance.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrUnknownAsset marks an asset id with no recorded owner.
	ErrUnknownAsset = errors.New("state: unknown asset")
	// ErrNotAssetOwner marks a transfer whose source is not the recorded
	// owner of the asset.
	ErrNotAssetOwner = errors.New("state: transfer source does not own asset")
)

var (
	balancePrefix = []byte("balances/")
	assetPrefix   = []byte("assets/")
)

func balanceKey(backend string, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%s/%x", balancePrefix, backend, addr))
}

func assetKey(backend string, assetID uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%d", assetPrefix, backend, assetID))
}

// ValueLedger is a fungible balance ledger for one value backend. It
// implements the marketplace's ValueBackend adapter contract: a synchronous,
// fallible transfer with no implicit retry.
type ValueLedger struct {
	state   *Manager
	backend string
}

// NewValueLedger binds a balance ledger to the supplied backend identity.
func NewValueLedger(state *Manager, backend string) *ValueLedger {
	return &ValueLedger{state: state, backend: backend}
}

// Balance returns the recorded balance for addr, zero when absent.
func (l *ValueLedger) Balance(addr [20]byte) (uint64, error) {
	var balance uint64
	if _, err := l.state.KVGet(balanceKey(l.backend, addr), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Mint credits addr with amount. Used for genesis funding and tests.
func (l *ValueLedger) Mint(addr [20]byte, amount uint64) error {
	balance, err := l.Balance(addr)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return fmt.Errorf("state: balance overflow for %x", addr)
	}
	return l.state.KVPut(balanceKey(l.backend, addr), balance+amount)
}

// Transfer moves amount from one principal to the other, failing without any
// partial effect when the payer's balance is insufficient.
func (l *ValueLedger) Transfer(amount uint64, from, to [20]byte) error {
	if amount == 0 {
		return nil
	}
	if from == to {
		return nil
	}
	fromBalance, err := l.Balance(from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: %x needs %d has %d", ErrInsufficientBalance, from, amount, fromBalance)
	}
	toBalance, err := l.Balance(to)
	if err != nil {
		return err
	}
	if toBalance > math.MaxUint64-amount {
		return fmt.Errorf("state: balance overflow for %x", to)
	}
	if err := l.state.KVPut(balanceKey(l.backend, from), fromBalance-amount); err != nil {
		return err
	}
	return l.state.KVPut(balanceKey(l.backend, to), toBalance+amount)
}

// AssetLedger records ownership of uniquely identified assets for one asset
// backend. It implements the marketplace's AssetBackend adapter contract and
// accepts the custody identity as both source and destination.
type AssetLedger struct {
	state   *Manager
	backend string
}

// NewAssetLedger binds an ownership ledger to the supplied backend identity.
func NewAssetLedger(state *Manager, backend string) *AssetLedger {
	return &AssetLedger{state: state, backend: backend}
}

// Owner returns the recorded owner of assetID. ok is false for unknown ids.
func (l *AssetLedger) Owner(assetID uint64) ([20]byte, bool, error) {
	var owner [20]byte
	ok, err := l.state.KVGet(assetKey(l.backend, assetID), &owner)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	return owner, true, nil
}

// Register records the initial owner of a newly minted asset.
func (l *AssetLedger) Register(assetID uint64, owner [20]byte) error {
	return l.state.KVPut(assetKey(l.backend, assetID), owner)
}

// Transfer reassigns assetID from one principal to the other. The source
// must be the recorded owner.
func (l *AssetLedger) Transfer(assetID uint64, from, to [20]byte) error {
	owner, ok, err := l.Owner(assetID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAsset, assetID)
	}
	if owner != from {
		return fmt.Errorf("%w: asset %d owned by %x", ErrNotAssetOwner, assetID, owner)
	}
	return l.state.KVPut(assetKey(l.backend, assetID), to)
}
