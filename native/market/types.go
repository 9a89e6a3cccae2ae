package market

import (
	"fmt"
	"strings"
)

// Listing holds the state of a single escrowed asset offered for sale. A
// listing exists in state iff the marketplace custody identity currently
// holds the asset on the maker's behalf; terminal transitions always remove
// the record in the same step that releases custody.
type Listing struct {
	ID             uint64
	Maker          [20]byte
	Taker          [20]byte
	TakerSet       bool
	AssetID        uint64
	AssetBackend   string
	Expiry         uint64
	Price          uint64
	PaymentBackend string
	PaymentSet     bool
}

// ListingMetadata enriches emitted events for a listing. It carries no
// settlement invariant and may be absent without affecting correctness.
type ListingMetadata struct {
	ID         uint64
	Category   string
	Collection string
	ListedAt   uint64
}

// Clone returns a copy of the listing so callers can safely mutate the copy
// without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// Clone returns a copy of the metadata record.
func (m *ListingMetadata) Clone() *ListingMetadata {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// RestrictedTo reports the optional taker restriction recorded at creation.
func (l *Listing) RestrictedTo() ([20]byte, bool) {
	if l == nil || !l.TakerSet {
		return [20]byte{}, false
	}
	return l.Taker, true
}

// Payment reports the recorded payment backend; ok is false when the listing
// settles in the native currency.
func (l *Listing) Payment() (string, bool) {
	if l == nil || !l.PaymentSet {
		return "", false
	}
	return l.PaymentBackend, true
}

// NormalizeBackendID canonicalises a backend identifier for whitelist and
// registry lookups. Identifiers are case-insensitive and must be non-empty.
func NormalizeBackendID(id string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(id))
	if trimmed == "" {
		return "", fmt.Errorf("market: empty backend identifier")
	}
	return trimmed, nil
}

// SanitizeListing validates and normalises the supplied listing, returning a
// cloned instance with canonical backend identifiers. The original value is
// not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	clone := l.Clone()
	backend, err := NormalizeBackendID(clone.AssetBackend)
	if err != nil {
		return nil, err
	}
	clone.AssetBackend = backend
	if clone.PaymentSet {
		payment, err := NormalizeBackendID(clone.PaymentBackend)
		if err != nil {
			return nil, err
		}
		clone.PaymentBackend = payment
	} else {
		clone.PaymentBackend = ""
	}
	if !clone.TakerSet {
		clone.Taker = [20]byte{}
	}
	if clone.Price == 0 {
		return nil, ErrPriceZero
	}
	return clone, nil
}
