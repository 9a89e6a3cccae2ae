package market

import (
	"encoding/hex"
	"strconv"

	"marketd/core/types"
)

const (
	EventTypeListingCreated      = "market.listing.created"
	EventTypeListingCancelled    = "market.listing.cancelled"
	EventTypeAssetSold           = "market.asset.sold"
	EventTypeFeeCollected        = "market.fee.collected"
	EventTypeWhitelistUpdated    = "market.whitelist.updated"
	EventTypeFeeRateChanged      = "market.fee_rate.changed"
	EventTypeFeeRecipientChanged = "market.fee_recipient.changed"
	EventTypeMarketSummary       = "market.summary"
)

func addr(a [20]byte) string {
	return hex.EncodeToString(a[:])
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// ListingCreated is emitted after an asset has been escrowed and its listing
// registered in the ledger.
type ListingCreated struct {
	Listing  *Listing
	Metadata *ListingMetadata
}

func (ListingCreated) EventType() string { return EventTypeListingCreated }

func (e ListingCreated) Event() *types.Event {
	attrs := make(map[string]string)
	if e.Listing != nil {
		l := e.Listing
		attrs["id"] = uintString(l.ID)
		attrs["maker"] = addr(l.Maker)
		attrs["assetId"] = uintString(l.AssetID)
		attrs["assetBackend"] = l.AssetBackend
		attrs["expiry"] = uintString(l.Expiry)
		attrs["price"] = uintString(l.Price)
		if taker, ok := l.RestrictedTo(); ok {
			attrs["taker"] = addr(taker)
		}
		if payment, ok := l.Payment(); ok {
			attrs["paymentBackend"] = payment
		} else {
			attrs["paymentBackend"] = "native"
		}
	}
	if e.Metadata != nil {
		attrs["category"] = e.Metadata.Category
		attrs["collection"] = e.Metadata.Collection
		attrs["listedAt"] = uintString(e.Metadata.ListedAt)
	}
	return &types.Event{Type: EventTypeListingCreated, Attributes: attrs}
}

// ListingCancelled is emitted when a maker withdraws a listing. TimeListed is
// derived from the metadata's listing height and is zero when the metadata
// record was absent.
type ListingCancelled struct {
	Listing    *Listing
	TimeListed uint64
}

func (ListingCancelled) EventType() string { return EventTypeListingCancelled }

func (e ListingCancelled) Event() *types.Event {
	attrs := make(map[string]string)
	if e.Listing != nil {
		attrs["id"] = uintString(e.Listing.ID)
		attrs["maker"] = addr(e.Listing.Maker)
		attrs["assetId"] = uintString(e.Listing.AssetID)
		attrs["assetBackend"] = e.Listing.AssetBackend
	}
	attrs["timeListed"] = uintString(e.TimeListed)
	return &types.Event{Type: EventTypeListingCancelled, Attributes: attrs}
}

// AssetSold is emitted once fulfilment has settled: value moved, asset
// released, listing removed.
type AssetSold struct {
	Listing    *Listing
	Metadata   *ListingMetadata
	Buyer      [20]byte
	Fee        uint64
	Net        uint64
	TimeToSale uint64
}

func (AssetSold) EventType() string { return EventTypeAssetSold }

func (e AssetSold) Event() *types.Event {
	attrs := make(map[string]string)
	if e.Listing != nil {
		l := e.Listing
		attrs["id"] = uintString(l.ID)
		attrs["seller"] = addr(l.Maker)
		attrs["assetId"] = uintString(l.AssetID)
		attrs["assetBackend"] = l.AssetBackend
		attrs["price"] = uintString(l.Price)
		if payment, ok := l.Payment(); ok {
			attrs["paymentBackend"] = payment
		} else {
			attrs["paymentBackend"] = "native"
		}
	}
	attrs["buyer"] = addr(e.Buyer)
	attrs["fee"] = uintString(e.Fee)
	attrs["net"] = uintString(e.Net)
	attrs["timeToSale"] = uintString(e.TimeToSale)
	if e.Metadata != nil {
		attrs["category"] = e.Metadata.Category
		attrs["collection"] = e.Metadata.Collection
	}
	return &types.Event{Type: EventTypeAssetSold, Attributes: attrs}
}

// FeeCollected is emitted alongside AssetSold whenever the computed fee was
// non-zero, making the floor-division rounding loss auditable.
type FeeCollected struct {
	ListingID uint64
	Payer     [20]byte
	Recipient [20]byte
	Amount    uint64
	Backend   string
}

func (FeeCollected) EventType() string { return EventTypeFeeCollected }

func (e FeeCollected) Event() *types.Event {
	backend := e.Backend
	if backend == "" {
		backend = "native"
	}
	return &types.Event{
		Type: EventTypeFeeCollected,
		Attributes: map[string]string{
			"id":             uintString(e.ListingID),
			"payer":          addr(e.Payer),
			"recipient":      addr(e.Recipient),
			"amount":         uintString(e.Amount),
			"paymentBackend": backend,
		},
	}
}

// WhitelistUpdated is the configuration-change audit event for the backend
// trust registry.
type WhitelistUpdated struct {
	Backend  string
	Previous bool
	Allowed  bool
}

func (WhitelistUpdated) EventType() string { return EventTypeWhitelistUpdated }

func (e WhitelistUpdated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeWhitelistUpdated,
		Attributes: map[string]string{
			"backend":  e.Backend,
			"previous": strconv.FormatBool(e.Previous),
			"allowed":  strconv.FormatBool(e.Allowed),
		},
	}
}

// FeeRateChanged carries both the old and new rate for audit.
type FeeRateChanged struct {
	OldBps uint32
	NewBps uint32
}

func (FeeRateChanged) EventType() string { return EventTypeFeeRateChanged }

func (e FeeRateChanged) Event() *types.Event {
	return &types.Event{
		Type: EventTypeFeeRateChanged,
		Attributes: map[string]string{
			"oldBps": strconv.FormatUint(uint64(e.OldBps), 10),
			"newBps": strconv.FormatUint(uint64(e.NewBps), 10),
		},
	}
}

// FeeRecipientChanged carries both the old and new recipient for audit.
type FeeRecipientChanged struct {
	Old [20]byte
	New [20]byte
}

func (FeeRecipientChanged) EventType() string { return EventTypeFeeRecipientChanged }

func (e FeeRecipientChanged) Event() *types.Event {
	return &types.Event{
		Type: EventTypeFeeRecipientChanged,
		Attributes: map[string]string{
			"old": addr(e.Old),
			"new": addr(e.New),
		},
	}
}

// MarketSummary is the on-demand snapshot event produced by the summary
// query.
type MarketSummary struct {
	Height        uint64
	Active        uint64
	Expired       uint64
	EscrowedValue uint64
}

func (MarketSummary) EventType() string { return EventTypeMarketSummary }

func (e MarketSummary) Event() *types.Event {
	return &types.Event{
		Type: EventTypeMarketSummary,
		Attributes: map[string]string{
			"height":        uintString(e.Height),
			"active":        uintString(e.Active),
			"expired":       uintString(e.Expired),
			"escrowedValue": uintString(e.EscrowedValue),
		},
	}
}
