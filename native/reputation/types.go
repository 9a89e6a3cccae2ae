package reputation

import (
	"errors"
	"fmt"
)

// Roles counted by the ledger. Sales and purchases increment their counters;
// listing and cancellation activity only flows through the completion-rate
// recompute so the audit trail stays symmetric across every transition.
const (
	RoleSale         = "sale"
	RolePurchase     = "purchase"
	RoleListing      = "listing"
	RoleCancellation = "cancellation"
)

// ErrUnknownRole marks activity submitted under an unsupported role.
var ErrUnknownRole = errors.New("reputation: unknown role")

// Record captures the derived per-principal marketplace counters. Counters
// are monotonically non-decreasing; the completion rate is recomputed on
// every update.
type Record struct {
	TotalSales     uint64
	TotalPurchases uint64
	CompletionRate uint32
}

// DefaultRecord is the state assumed for a principal with no recorded
// activity: zero counters and a 100% completion rate.
func DefaultRecord() *Record {
	return &Record{CompletionRate: 100}
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// ValidateRole reports whether role is one the ledger understands.
func ValidateRole(role string) error {
	switch role {
	case RoleSale, RolePurchase, RoleListing, RoleCancellation:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
}
