package market

import (
	"fmt"
	"sync"

	"marketd/core/events"
)

// ReputationRecorder is the post-transition hook used to maintain derived
// per-principal counters. It is bookkeeping only: the ledger never consults
// it as a precondition and a failing recorder must never block settlement.
type ReputationRecorder interface {
	Record(principal [20]byte, role string, successful bool) error
}

// Roles passed to the reputation recorder.
const (
	RoleSale         = "sale"
	RolePurchase     = "purchase"
	RoleListing      = "listing"
	RoleCancellation = "cancellation"
)

// Engine is the listing ledger: the escrow state machine holding one record
// per active listing. Every externally invoked operation runs under a single
// mutex so validation-through-settlement is serial, matching the
// all-or-nothing commit model the invariants assume.
type Engine struct {
	mu         sync.Mutex
	state      engineState
	emitter    events.Emitter
	registry   *BackendRegistry
	native     ValueBackend
	reputation ReputationRecorder
	admin      [20]byte
	custody    [20]byte
	heightFn   func() uint64
}

// NewEngine creates a listing engine with a no-op emitter. Callers configure
// state, backends and identities via the setters before first use.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		registry: NewBackendRegistry(),
		heightFn: func() uint64 { return 0 },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the backend registry used for adapter dispatch.
func (e *Engine) SetRegistry(registry *BackendRegistry) {
	if registry == nil {
		e.registry = NewBackendRegistry()
		return
	}
	e.registry = registry
}

// SetNativeValue configures the adapter for the native settlement currency.
func (e *Engine) SetNativeValue(backend ValueBackend) { e.native = backend }

// SetReputation configures the post-transition reputation hook.
func (e *Engine) SetReputation(recorder ReputationRecorder) { e.reputation = recorder }

// SetAdmin configures the administrator identity fixed at deployment.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// SetCustody configures the marketplace's own custodial identity.
func (e *Engine) SetCustody(addr [20]byte) { e.custody = addr }

// SetHeightFn overrides the block height source used by the engine.
// Primarily intended for tests to provide deterministic heights.
func (e *Engine) SetHeightFn(height func() uint64) {
	if height == nil {
		e.heightFn = func() uint64 { return 0 }
		return
	}
	e.heightFn = height
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) height() uint64 {
	if e == nil || e.heightFn == nil {
		return 0
	}
	return e.heightFn()
}

func (e *Engine) record(principal [20]byte, role string, successful bool) {
	if e == nil || e.reputation == nil {
		return
	}
	// Derived bookkeeping must never block a settlement.
	_ = e.reputation.Record(principal, role, successful)
}

func (e *Engine) isWhitelisted(normalized string) bool {
	var allowed bool
	ok, err := e.state.KVGet(whitelistKey(normalized), &allowed)
	if err != nil || !ok {
		return false
	}
	return allowed
}

func (e *Engine) assetBackend(id string) (AssetBackend, error) {
	if e.registry == nil {
		return nil, errNilRegistry
	}
	backend, ok := e.registry.Asset(id)
	if !ok {
		return nil, fmt.Errorf("%w: asset backend %q", errBackendNotBound, id)
	}
	return backend, nil
}

func (e *Engine) valueBackend(listing *Listing) (ValueBackend, error) {
	if payment, ok := listing.Payment(); ok {
		if e.registry == nil {
			return nil, errNilRegistry
		}
		backend, found := e.registry.Value(payment)
		if !found {
			return nil, fmt.Errorf("%w: value backend %q", errBackendNotBound, payment)
		}
		return backend, nil
	}
	if e.native == nil {
		return nil, errNilNativeValue
	}
	return e.native, nil
}

// CreateListingParams carries the caller-supplied inputs for CreateListing.
type CreateListingParams struct {
	AssetID        uint64
	AssetBackend   string
	Taker          *[20]byte
	Expiry         uint64
	Price          uint64
	PaymentBackend *string
	Category       string
	Collection     string
}

// CreateListing escrows the asset under marketplace custody and registers the
// listing. Preconditions are checked in a fixed order with short-circuit on
// the first failure; the custody transfer only runs after every check has
// passed, so a failed transfer leaves no ledger entry behind.
func (e *Engine) CreateListing(maker [20]byte, params CreateListingParams) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.custody == ([20]byte{}) {
		return 0, errCustodyUnset
	}

	assetBackendID, err := NormalizeBackendID(params.AssetBackend)
	if err != nil || !e.isWhitelisted(assetBackendID) {
		return 0, ErrAssetBackendNotWhitelisted
	}
	height := e.height()
	if params.Expiry <= height {
		return 0, ErrExpiryInPast
	}
	if params.Price == 0 {
		return 0, ErrPriceZero
	}
	paymentBackendID := ""
	if params.PaymentBackend != nil {
		paymentBackendID, err = NormalizeBackendID(*params.PaymentBackend)
		if err != nil || !e.isWhitelisted(paymentBackendID) {
			return 0, ErrPaymentBackendNotWhitelisted
		}
	}

	custodian, err := e.assetBackend(assetBackendID)
	if err != nil {
		return 0, err
	}
	if err := custodian.Transfer(params.AssetID, maker, e.custody); err != nil {
		return 0, err
	}

	id, err := e.nextListingID()
	if err != nil {
		return 0, err
	}
	listing := &Listing{
		ID:             id,
		Maker:          maker,
		AssetID:        params.AssetID,
		AssetBackend:   assetBackendID,
		Expiry:         params.Expiry,
		Price:          params.Price,
		PaymentBackend: paymentBackendID,
		PaymentSet:     params.PaymentBackend != nil,
	}
	if params.Taker != nil {
		listing.Taker = *params.Taker
		listing.TakerSet = true
	}
	if err := e.storeListing(listing); err != nil {
		return 0, err
	}
	meta := &ListingMetadata{
		ID:         id,
		Category:   params.Category,
		Collection: params.Collection,
		ListedAt:   height,
	}
	if err := e.storeMetadata(meta); err != nil {
		return 0, err
	}
	if err := e.appendToIndex(id); err != nil {
		return 0, err
	}
	e.record(maker, RoleListing, true)
	e.emit(ListingCreated{Listing: listing.Clone(), Metadata: meta.Clone()})
	return id, nil
}

// CancelListing removes the listing and returns the asset to the maker. The
// ledger entry is deleted before the custody release call so a reentrant or
// failing transfer cannot observe a still-registered but already-initiated
// release. A release failure after deletion propagates to the caller and is
// unrecoverable by the ledger.
func (e *Engine) CancelListing(id uint64, caller [20]byte, assetBackend string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if caller != listing.Maker {
		return ErrUnauthorised
	}
	suppliedBackend, err := NormalizeBackendID(assetBackend)
	if err != nil || suppliedBackend != listing.AssetBackend {
		return ErrAssetMismatch
	}
	custodian, err := e.assetBackend(listing.AssetBackend)
	if err != nil {
		return err
	}

	timeListed := uint64(0)
	if meta, ok, metaErr := e.loadMetadata(id); metaErr == nil && ok {
		if height := e.height(); height > meta.ListedAt {
			timeListed = height - meta.ListedAt
		}
	}
	if err := e.deleteListing(id); err != nil {
		return err
	}
	e.record(listing.Maker, RoleCancellation, true)
	e.emit(ListingCancelled{Listing: listing.Clone(), TimeListed: timeListed})
	return custodian.Transfer(listing.AssetID, e.custody, listing.Maker)
}

// FulfilListing settles the listing: the buyer pays the fee and net amounts,
// the asset is released from custody, then the ledger entry is removed.
// Value moves before the asset so a failing payment never strands the asset
// outside both parties' control, and the fee is deducted before the net so
// floor-division rounding loss is borne by the marketplace fee, never the
// seller.
func (e *Engine) FulfilListing(id uint64, caller [20]byte, assetBackend string, paymentBackend *string) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	if caller == listing.Maker {
		return nil, ErrMakerTakerEqual
	}
	if taker, restricted := listing.RestrictedTo(); restricted && caller != taker {
		return nil, ErrUnintendedTaker
	}
	height := e.height()
	if height >= listing.Expiry {
		return nil, ErrListingExpired
	}
	suppliedAsset, err := NormalizeBackendID(assetBackend)
	if err != nil || suppliedAsset != listing.AssetBackend {
		return nil, ErrAssetMismatch
	}
	recordedPayment, recordedSet := listing.Payment()
	if paymentBackend == nil {
		if recordedSet {
			return nil, ErrPaymentAssetMismatch
		}
	} else {
		suppliedPayment, err := NormalizeBackendID(*paymentBackend)
		if err != nil || !recordedSet || suppliedPayment != recordedPayment {
			return nil, ErrPaymentAssetMismatch
		}
	}

	policy, err := e.loadFeePolicy()
	if err != nil {
		return nil, err
	}
	fee, net := policy.Split(listing.Price)
	value, err := e.valueBackend(listing)
	if err != nil {
		return nil, err
	}
	custodian, err := e.assetBackend(listing.AssetBackend)
	if err != nil {
		return nil, err
	}

	if fee > 0 {
		if policy.Recipient == ([20]byte{}) {
			return nil, errRecipientUnset
		}
		if err := value.Transfer(fee, caller, policy.Recipient); err != nil {
			return nil, err
		}
	}
	if net > 0 {
		if err := value.Transfer(net, caller, listing.Maker); err != nil {
			return nil, err
		}
	}
	if err := custodian.Transfer(listing.AssetID, e.custody, caller); err != nil {
		return nil, err
	}

	meta, hadMeta, _ := e.loadMetadata(id)
	if err := e.deleteListing(id); err != nil {
		return nil, err
	}
	e.record(listing.Maker, RoleSale, true)
	e.record(caller, RolePurchase, true)

	timeToSale := uint64(0)
	if hadMeta && height > meta.ListedAt {
		timeToSale = height - meta.ListedAt
	}
	e.emit(AssetSold{
		Listing:    listing.Clone(),
		Metadata:   meta.Clone(),
		Buyer:      caller,
		Fee:        fee,
		Net:        net,
		TimeToSale: timeToSale,
	})
	if fee > 0 {
		e.emit(FeeCollected{
			ListingID: id,
			Payer:     caller,
			Recipient: policy.Recipient,
			Amount:    fee,
			Backend:   listing.PaymentBackend,
		})
	}
	return listing.Clone(), nil
}

// --- fee policy ---

func (e *Engine) loadFeePolicy() (*FeePolicy, error) {
	var policy FeePolicy
	if _, err := e.state.KVGet(feePolicyKey, &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (e *Engine) storeFeePolicy(policy *FeePolicy) error {
	return e.state.KVPut(feePolicyKey, policy)
}

// SeedFeePolicy installs the policy at genesis when none is recorded yet. It
// never overwrites an existing policy and emits no audit event.
func (e *Engine) SeedFeePolicy(policy FeePolicy) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if policy.RateBps > MaxFeeBps {
		return ErrInvalidFeeRate
	}
	exists, err := e.state.KVGet(feePolicyKey, nil)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return e.storeFeePolicy(&policy)
}

// SetFeeRate updates the marketplace fee rate. Restricted to the
// administrator identity; rejected when the rate exceeds MaxFeeBps. The old
// and new values are both included in the emitted event for audit.
func (e *Engine) SetFeeRate(caller [20]byte, bps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.admin {
		return ErrUnauthorised
	}
	if bps > MaxFeeBps {
		return ErrInvalidFeeRate
	}
	policy, err := e.loadFeePolicy()
	if err != nil {
		return err
	}
	old := policy.RateBps
	policy.RateBps = bps
	if err := e.storeFeePolicy(policy); err != nil {
		return err
	}
	e.emit(FeeRateChanged{OldBps: old, NewBps: bps})
	return nil
}

// SetFeeRecipient updates the payable fee recipient identity. Restricted to
// the administrator identity.
func (e *Engine) SetFeeRecipient(caller [20]byte, recipient [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.admin {
		return ErrUnauthorised
	}
	policy, err := e.loadFeePolicy()
	if err != nil {
		return err
	}
	old := policy.Recipient
	policy.Recipient = recipient
	if err := e.storeFeePolicy(policy); err != nil {
		return err
	}
	e.emit(FeeRecipientChanged{Old: old, New: recipient})
	return nil
}

// --- read-only queries ---

// GetListing fetches the listing recorded under id.
func (e *Engine) GetListing(id uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	return listing.Clone(), nil
}

// GetMetadata fetches the analytics metadata recorded under id. ok is false
// when the record is absent.
func (e *Engine) GetMetadata(id uint64) (*ListingMetadata, bool, error) {
	meta, ok, err := e.loadMetadata(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return meta.Clone(), true, nil
}

// GetFeePolicy returns the currently configured fee rate and recipient.
func (e *Engine) GetFeePolicy() (*FeePolicy, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	policy, err := e.loadFeePolicy()
	if err != nil {
		return nil, err
	}
	return policy.Clone(), nil
}

// PreviewSplit computes the fee and net amounts the current policy would
// apply to price, without side effects.
func (e *Engine) PreviewSplit(price uint64) (fee uint64, net uint64, err error) {
	policy, err := e.GetFeePolicy()
	if err != nil {
		return 0, 0, err
	}
	fee, net = policy.Split(price)
	return fee, net, nil
}

// Summary walks the active listings, emits the on-demand market snapshot
// event and returns the snapshot. Listings past expiry remain escrowed until
// the maker cancels; the expired count surfaces that backlog.
func (e *Engine) Summary() (*MarketSummary, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ids, err := e.activeIDs()
	if err != nil {
		return nil, err
	}
	height := e.height()
	summary := &MarketSummary{Height: height}
	for _, id := range ids {
		listing, err := e.loadListing(id)
		if err != nil {
			return nil, err
		}
		summary.Active++
		summary.EscrowedValue += listing.Price
		if height >= listing.Expiry {
			summary.Expired++
		}
	}
	e.emit(*summary)
	return summary, nil
}
