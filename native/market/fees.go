package market

import (
	"github.com/holiman/uint256"
)

// MaxFeeBps caps the marketplace fee at 10%.
const MaxFeeBps = 1000

const bpsDenominator = 10_000

// FeePolicy captures the flat marketplace fee configuration persisted in
// state. Both fields are mutable only through the admin surface.
type FeePolicy struct {
	RateBps   uint32
	Recipient [20]byte
}

// Clone returns a copy of the policy.
func (p *FeePolicy) Clone() *FeePolicy {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Validate reports whether the policy is within the supported bounds.
func (p *FeePolicy) Validate() error {
	if p == nil {
		return errRecipientUnset
	}
	if p.RateBps > MaxFeeBps {
		return ErrInvalidFeeRate
	}
	if p.Recipient == ([20]byte{}) {
		return errRecipientUnset
	}
	return nil
}

// ComputeSplit divides price into the marketplace fee and the seller
// proceeds. The intermediate product is computed in 256-bit arithmetic so a
// maximal uint64 price cannot truncate; floor division means any rounding
// loss reduces the fee, never the seller's net.
func ComputeSplit(price uint64, rateBps uint32) (fee uint64, net uint64) {
	if rateBps == 0 || price == 0 {
		return 0, price
	}
	product := new(uint256.Int).Mul(
		uint256.NewInt(price),
		uint256.NewInt(uint64(rateBps)),
	)
	product.Div(product, uint256.NewInt(bpsDenominator))
	fee = product.Uint64()
	return fee, price - fee
}

// Split applies the policy's configured rate to price.
func (p *FeePolicy) Split(price uint64) (fee uint64, net uint64) {
	if p == nil {
		return 0, price
	}
	return ComputeSplit(price, p.RateBps)
}
