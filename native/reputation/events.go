package reputation

import (
	"encoding/hex"
	"strconv"

	"marketd/core/types"
)

// EventTypeActivity is emitted on every counter update with the completion
// rate before and after the recompute.
const EventTypeActivity = "reputation.activity"

// Activity is the audit event for one recorded transition.
type Activity struct {
	Principal  [20]byte
	Role       string
	Successful bool
	RateBefore uint32
	RateAfter  uint32
	Record     *Record
}

func (Activity) EventType() string { return EventTypeActivity }

func (e Activity) Event() *types.Event {
	attrs := map[string]string{
		"principal":  hex.EncodeToString(e.Principal[:]),
		"role":       e.Role,
		"successful": strconv.FormatBool(e.Successful),
		"rateBefore": strconv.FormatUint(uint64(e.RateBefore), 10),
		"rateAfter":  strconv.FormatUint(uint64(e.RateAfter), 10),
	}
	if e.Record != nil {
		attrs["totalSales"] = strconv.FormatUint(e.Record.TotalSales, 10)
		attrs["totalPurchases"] = strconv.FormatUint(e.Record.TotalPurchases, 10)
	}
	return &types.Event{Type: EventTypeActivity, Attributes: attrs}
}
