package reputation

import (
	"fmt"

	"marketd/core/events"
)

// storage abstracts the subset of state manager functionality required by the
// reputation ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var recordPrefix = []byte("reputation/score/")

func recordKey(principal [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", recordPrefix, principal))
}

// Ledger persists the derived activity counters per principal. It is owned
// exclusively by the listing ledger's post-transition hook; nothing else
// writes to it and no settlement path reads from it.
type Ledger struct {
	store   storage
	emitter events.Emitter
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets it to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// Get fetches the record for principal, defaulting to zero counters and a
// 100% completion rate when no activity was ever recorded.
func (l *Ledger) Get(principal [20]byte) (*Record, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("reputation: ledger storage not configured")
	}
	var record Record
	ok, err := l.store.KVGet(recordKey(principal), &record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return DefaultRecord(), nil
	}
	return &record, nil
}

// Record registers one completed activity for principal under the supplied
// role and recomputes the completion rate. Sale and purchase activity
// increments the matching counter; listing and cancellation activity leaves
// the counters untouched but still recomputes the rate.
func (l *Ledger) Record(principal [20]byte, role string, successful bool) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("reputation: ledger storage not configured")
	}
	if err := ValidateRole(role); err != nil {
		return err
	}
	record, err := l.Get(principal)
	if err != nil {
		return err
	}
	before := record.CompletionRate

	switch role {
	case RoleSale:
		record.TotalSales++
	case RolePurchase:
		record.TotalPurchases++
	}
	total := record.TotalSales + record.TotalPurchases
	if total == 0 {
		record.CompletionRate = 100
	} else {
		counted := total
		if !successful {
			counted = total - 1
		}
		record.CompletionRate = uint32(counted * 100 / total)
	}

	if err := l.store.KVPut(recordKey(principal), record); err != nil {
		return err
	}
	l.emitter.Emit(Activity{
		Principal:  principal,
		Role:       role,
		Successful: successful,
		RateBefore: before,
		RateAfter:  record.CompletionRate,
		Record:     record.Clone(),
	})
	return nil
}
