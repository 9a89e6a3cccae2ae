package market

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"

	"marketd/core/events"
)

type mockState struct {
	data map[string][]byte
}

func newMockState() *mockState {
	return &mockState{data: make(map[string][]byte)}
}

func (m *mockState) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *mockState) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.data[string(key)]
	if !ok || len(encoded) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *mockState) KVDelete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

type mockAssetBackend struct {
	owners  map[uint64][20]byte
	failErr error
}

func newMockAssetBackend() *mockAssetBackend {
	return &mockAssetBackend{owners: make(map[uint64][20]byte)}
}

func (b *mockAssetBackend) Transfer(assetID uint64, from, to [20]byte) error {
	if b.failErr != nil {
		return b.failErr
	}
	owner, ok := b.owners[assetID]
	if !ok {
		return fmt.Errorf("mock: unknown asset %d", assetID)
	}
	if owner != from {
		return fmt.Errorf("mock: asset %d not owned by source", assetID)
	}
	b.owners[assetID] = to
	return nil
}

type mockValueBackend struct {
	balances map[[20]byte]uint64
	failErr  error
}

func newMockValueBackend() *mockValueBackend {
	return &mockValueBackend{balances: make(map[[20]byte]uint64)}
}

func (b *mockValueBackend) Transfer(amount uint64, from, to [20]byte) error {
	if b.failErr != nil {
		return b.failErr
	}
	if b.balances[from] < amount {
		return fmt.Errorf("mock: insufficient balance")
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

type repCall struct {
	principal  [20]byte
	role       string
	successful bool
}

type mockReputation struct {
	calls []repCall
}

func (m *mockReputation) Record(principal [20]byte, role string, successful bool) error {
	m.calls = append(m.calls, repCall{principal: principal, role: role, successful: successful})
	return nil
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

const (
	assetBackendID = "collectibles"
	tokenBackendID = "gemtoken"
)

var (
	adminAddr    = testAddr(0xAD)
	custodyAddr  = testAddr(0xCC)
	feeRecipient = testAddr(0xFE)
	maker        = testAddr(0x11)
	buyer        = testAddr(0x22)
	stranger     = testAddr(0x33)
)

type testEnv struct {
	engine   *Engine
	state    *mockState
	assets   *mockAssetBackend
	native   *mockValueBackend
	token    *mockValueBackend
	rep      *mockReputation
	recorder *events.Recorder
	height   uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:    newMockState(),
		assets:   newMockAssetBackend(),
		native:   newMockValueBackend(),
		token:    newMockValueBackend(),
		rep:      &mockReputation{},
		recorder: events.NewRecorder(),
		height:   100,
	}
	registry := NewBackendRegistry()
	if err := registry.RegisterAsset(assetBackendID, env.assets); err != nil {
		t.Fatalf("register asset backend: %v", err)
	}
	if err := registry.RegisterValue(tokenBackendID, env.token); err != nil {
		t.Fatalf("register value backend: %v", err)
	}
	engine := NewEngine()
	engine.SetState(env.state)
	engine.SetRegistry(registry)
	engine.SetNativeValue(env.native)
	engine.SetReputation(env.rep)
	engine.SetAdmin(adminAddr)
	engine.SetCustody(custodyAddr)
	engine.SetEmitter(env.recorder)
	engine.SetHeightFn(func() uint64 { return env.height })
	env.engine = engine

	if err := engine.SetWhitelisted(adminAddr, assetBackendID, true); err != nil {
		t.Fatalf("whitelist asset backend: %v", err)
	}
	if err := engine.SetWhitelisted(adminAddr, tokenBackendID, true); err != nil {
		t.Fatalf("whitelist token backend: %v", err)
	}
	if err := engine.SeedFeePolicy(FeePolicy{RateBps: 250, Recipient: feeRecipient}); err != nil {
		t.Fatalf("seed fee policy: %v", err)
	}
	return env
}

func (env *testEnv) mintAsset(t *testing.T, assetID uint64, owner [20]byte) {
	t.Helper()
	env.assets.owners[assetID] = owner
}

func (env *testEnv) createListing(t *testing.T, params CreateListingParams) uint64 {
	t.Helper()
	id, err := env.engine.CreateListing(maker, params)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return id
}

func defaultParams() CreateListingParams {
	return CreateListingParams{
		AssetID:      7,
		AssetBackend: assetBackendID,
		Expiry:       200,
		Price:        1_000_000,
		Category:     "art",
		Collection:   "genesis",
	}
}

func (env *testEnv) eventsOfType(eventType string) int {
	count := 0
	for _, evt := range env.recorder.Events() {
		if evt.Type == eventType {
			count++
		}
	}
	return count
}

func TestCreateListingEscrowsAsset(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)

	id := env.createListing(t, defaultParams())
	if id != 1 {
		t.Fatalf("expected first listing id 1, got %d", id)
	}
	if env.assets.owners[7] != custodyAddr {
		t.Fatalf("asset not moved to custody")
	}
	listing, err := env.engine.GetListing(id)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Maker != maker || listing.Price != 1_000_000 || listing.Expiry != 200 {
		t.Fatalf("unexpected listing record: %+v", listing)
	}
	if _, ok := listing.Payment(); ok {
		t.Fatalf("expected native payment listing")
	}
	meta, ok, err := env.engine.GetMetadata(id)
	if err != nil || !ok {
		t.Fatalf("expected metadata record, ok=%v err=%v", ok, err)
	}
	if meta.ListedAt != 100 || meta.Category != "art" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if len(env.rep.calls) != 1 || env.rep.calls[0].role != RoleListing || !env.rep.calls[0].successful {
		t.Fatalf("expected one successful listing reputation call, got %+v", env.rep.calls)
	}
	if env.eventsOfType(EventTypeListingCreated) != 1 {
		t.Fatalf("expected one listing created event")
	}
}

func TestCreateListingIDsNeverReused(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	env.mintAsset(t, 8, maker)

	first := env.createListing(t, defaultParams())
	if err := env.engine.CancelListing(first, maker, assetBackendID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	params := defaultParams()
	params.AssetID = 8
	second := env.createListing(t, params)
	if second != first+1 {
		t.Fatalf("expected id %d after cancel, got %d", first+1, second)
	}
}

func TestCreateListingValidationOrder(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	tokenRef := tokenBackendID
	unlistedRef := "unknowntoken"

	cases := []struct {
		name   string
		mutate func(*CreateListingParams)
		want   error
	}{
		{"asset backend checked first", func(p *CreateListingParams) {
			p.AssetBackend = "unlistedassets"
			p.Expiry = 0 // would also fail
			p.Price = 0  // would also fail
		}, ErrAssetBackendNotWhitelisted},
		{"expiry before price", func(p *CreateListingParams) {
			p.Expiry = 100 // equals current height, exclusive bound
			p.Price = 0
		}, ErrExpiryInPast},
		{"price before payment backend", func(p *CreateListingParams) {
			p.Price = 0
			p.PaymentBackend = &unlistedRef
		}, ErrPriceZero},
		{"payment backend last", func(p *CreateListingParams) {
			p.PaymentBackend = &unlistedRef
		}, ErrPaymentBackendNotWhitelisted},
		{"whitelisted payment backend passes", func(p *CreateListingParams) {
			p.PaymentBackend = &tokenRef
		}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := defaultParams()
			tc.mutate(&params)
			_, err := env.engine.CreateListing(maker, params)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateListingTransferFailureLeavesNoState(t *testing.T) {
	env := newTestEnv(t)
	// Asset owned by someone else: escrow-in must fail.
	env.mintAsset(t, 7, stranger)

	_, err := env.engine.CreateListing(maker, defaultParams())
	if err == nil {
		t.Fatalf("expected custody transfer failure")
	}
	if _, getErr := env.engine.GetListing(1); !errors.Is(getErr, ErrUnknownListing) {
		t.Fatalf("expected no listing after failed escrow, got %v", getErr)
	}
	if len(env.rep.calls) != 0 {
		t.Fatalf("reputation must not record failed creations")
	}
	if env.eventsOfType(EventTypeListingCreated) != 0 {
		t.Fatalf("no creation event expected")
	}
}

func TestCancelListingReturnsAsset(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	id := env.createListing(t, defaultParams())
	env.height = 150

	if err := env.engine.CancelListing(id, maker, assetBackendID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if env.assets.owners[7] != maker {
		t.Fatalf("asset not returned to maker")
	}
	if _, err := env.engine.GetListing(id); !errors.Is(err, ErrUnknownListing) {
		t.Fatalf("expected listing removed, got %v", err)
	}
	// Second cancel must observe the terminal state.
	if err := env.engine.CancelListing(id, maker, assetBackendID); !errors.Is(err, ErrUnknownListing) {
		t.Fatalf("expected ErrUnknownListing on repeated cancel, got %v", err)
	}
	found := false
	for _, evt := range env.recorder.Events() {
		if evt.Type == EventTypeListingCancelled {
			found = true
			if evt.Attributes["timeListed"] != "50" {
				t.Fatalf("expected timeListed 50, got %s", evt.Attributes["timeListed"])
			}
		}
	}
	if !found {
		t.Fatalf("expected cancellation event")
	}
}

func TestCancelListingAuthorization(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	id := env.createListing(t, defaultParams())

	if err := env.engine.CancelListing(id, stranger, assetBackendID); !errors.Is(err, ErrUnauthorised) {
		t.Fatalf("expected ErrUnauthorised, got %v", err)
	}
	if _, err := env.engine.GetListing(id); err != nil {
		t.Fatalf("listing must remain after unauthorised cancel: %v", err)
	}
	if env.assets.owners[7] != custodyAddr {
		t.Fatalf("asset must stay in custody")
	}
}

func TestCancelListingAssetMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	id := env.createListing(t, defaultParams())

	if err := env.engine.CancelListing(id, maker, tokenBackendID); !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("expected ErrAssetMismatch, got %v", err)
	}
}

func TestCancelDeletesBeforeRelease(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	id := env.createListing(t, defaultParams())

	releaseErr := errors.New("custody backend offline")
	env.assets.failErr = releaseErr
	err := env.engine.CancelListing(id, maker, assetBackendID)
	if !errors.Is(err, releaseErr) {
		t.Fatalf("expected release failure to propagate, got %v", err)
	}
	// The ledger entry is gone even though the release failed: the
	// delete-before-external-call ordering is deliberate.
	if _, getErr := env.engine.GetListing(id); !errors.Is(getErr, ErrUnknownListing) {
		t.Fatalf("expected listing removed despite failed release, got %v", getErr)
	}
}

func TestFulfilListingNativeSettlement(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	id := env.createListing(t, defaultParams())
	env.native.balances[buyer] = 2_000_000
	env.height = 150

	listing, err := env.engine.FulfilListing(id, buyer, assetBackendID, nil)
	if err != nil {
		t.Fatalf("fulfil: %v", err)
	}
	if listing.ID != id {
		t.Fatalf("expected settled listing %d, got %d", id, listing.ID)
	}
	// 250 bps of 1,000,000: fee 25,000, net 975,000.
	if got := env.native.balances[feeRecipient]; got != 25_000 {
		t.Fatalf("fee recipient balance: want 25000, got %d", got)
	}
	if got := env.native.balances[maker]; got != 975_000 {
		t.Fatalf("maker balance: want 975000, got %d", got)
	}
	if got := env.native.balances[buyer]; got != 1_000_000 {
		t.Fatalf("buyer balance: want 1000000, got %d", got)
	}
	if env.assets.owners[7] != buyer {
		t.Fatalf("asset not released to buyer")
	}
	if _, err := env.engine.GetListing(id); !errors.Is(err, ErrUnknownListing) {
		t.Fatalf("expected listing removed after fulfilment")
	}
	// No double fulfilment.
	if _, err := env.engine.FulfilListing(id, buyer, assetBackendID, nil); !errors.Is(err, ErrUnknownListing) {
		t.Fatalf("expected ErrUnknownListing on second fulfil, got %v", err)
	}
	if env.eventsOfType(EventTypeAssetSold) != 1 {
		t.Fatalf("expected one sale event")
	}
	if env.eventsOfType(EventTypeFeeCollected) != 1 {
		t.Fatalf("expected one fee event")
	}

	roles := map[string]int{}
	for _, call := range env.rep.calls {
		roles[call.role]++
	}
	if roles[RoleSale] != 1 || roles[RolePurchase] != 1 {
		t.Fatalf("expected sale+purchase reputation calls, got %+v", roles)
	}
}

func TestFulfilZeroFeeEmitsNoFeeEvent(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.SetFeeRate(adminAddr, 0); err != nil {
		t.Fatalf("set fee rate: %v", err)
	}
	env.mintAsset(t, 7, maker)
	id := env.createListing(t, defaultParams())
	env.native.balances[buyer] = 1_000_000

	if _, err := env.engine.FulfilListing(id, buyer, assetBackendID, nil); err != nil {
		t.Fatalf("fulfil: %v", err)
	}
	if got := env.native.balances[maker]; got != 1_000_000 {
		t.Fatalf("maker should receive full price, got %d", got)
	}
	if env.eventsOfType(EventTypeFeeCollected) != 0 {
		t.Fatalf("no fee event expected at zero rate")
	}
}

func TestFulfilListingPreconditions(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	tokenRef := tokenBackendID

	params := defaultParams()
	taker := buyer
	params.Taker = &taker
	id := env.createListing(t, params)
	env.native.balances[buyer] = 2_000_000
	env.native.balances[stranger] = 2_000_000

	if _, err := env.engine.FulfilListing(99, buyer, assetBackendID, nil); !errors.Is(err, ErrUnknownListing) {
		t.Fatalf("expected ErrUnknownListing, got %v", err)
	}
	if _, err := env.engine.FulfilListing(id, maker, assetBackendID, nil); !errors.Is(err, ErrMakerTakerEqual) {
		t.Fatalf("expected ErrMakerTakerEqual, got %v", err)
	}
	if _, err := env.engine.FulfilListing(id, stranger, assetBackendID, nil); !errors.Is(err, ErrUnintendedTaker) {
		t.Fatalf("expected ErrUnintendedTaker, got %v", err)
	}
	if _, err := env.engine.FulfilListing(id, buyer, tokenBackendID, nil); !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("expected ErrAssetMismatch, got %v", err)
	}
	if _, err := env.engine.FulfilListing(id, buyer, assetBackendID, &tokenRef); !errors.Is(err, ErrPaymentAssetMismatch) {
		t.Fatalf("expected ErrPaymentAssetMismatch for token payment on native listing, got %v", err)
	}

	// Expiry is an exclusive upper bound.
	env.height = 200
	if _, err := env.engine.FulfilListing(id, buyer, assetBackendID, nil); !errors.Is(err, ErrListingExpired) {
		t.Fatalf("expected ErrListingExpired at expiry height, got %v", err)
	}
	env.height = 199
	if _, err := env.engine.FulfilListing(id, buyer, assetBackendID, nil); err != nil {
		t.Fatalf("expected fulfilment at expiry-1 to succeed, got %v", err)
	}
}

func TestFulfilTokenListingRequiresExactBackend(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	tokenRef := tokenBackendID
	params := defaultParams()
	params.PaymentBackend = &tokenRef
	id := env.createListing(t, params)
	env.token.balances[buyer] = 2_000_000
	env.native.balances[buyer] = 2_000_000

	// Supplying no payment backend for a token listing must not fall back
	// to the native currency.
	if _, err := env.engine.FulfilListing(id, buyer, assetBackendID, nil); !errors.Is(err, ErrPaymentAssetMismatch) {
		t.Fatalf("expected ErrPaymentAssetMismatch for native payment on token listing, got %v", err)
	}
	if _, err := env.engine.FulfilListing(id, buyer, assetBackendID, &tokenRef); err != nil {
		t.Fatalf("token settlement failed: %v", err)
	}
	if got := env.token.balances[maker]; got != 975_000 {
		t.Fatalf("maker token balance: want 975000, got %d", got)
	}
	if got := env.native.balances[buyer]; got != 2_000_000 {
		t.Fatalf("native balance must be untouched, got %d", got)
	}
}

func TestFulfilPaymentFailureLeavesListingRetryable(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	id := env.createListing(t, defaultParams())
	// Buyer has no funds: the net transfer fails.

	if _, err := env.engine.FulfilListing(id, buyer, assetBackendID, nil); err == nil {
		t.Fatalf("expected settlement failure")
	}
	if env.assets.owners[7] != custodyAddr {
		t.Fatalf("asset must stay in custody after failed settlement")
	}
	listing, err := env.engine.GetListing(id)
	if err != nil {
		t.Fatalf("listing must remain retryable: %v", err)
	}
	env.native.balances[buyer] = listing.Price
	if _, err := env.engine.FulfilListing(id, buyer, assetBackendID, nil); err != nil {
		t.Fatalf("retry after funding failed: %v", err)
	}
}

func TestEscrowConservation(t *testing.T) {
	env := newTestEnv(t)
	for assetID := uint64(1); assetID <= 4; assetID++ {
		env.mintAsset(t, assetID, maker)
	}
	env.native.balances[buyer] = 10_000_000

	check := func(step string) {
		t.Helper()
		inCustody := map[uint64]bool{}
		for assetID, owner := range env.assets.owners {
			if owner == custodyAddr {
				inCustody[assetID] = true
			}
		}
		ids, err := env.engine.activeIDs()
		if err != nil {
			t.Fatalf("%s: active ids: %v", step, err)
		}
		listed := map[uint64]bool{}
		for _, id := range ids {
			listing, err := env.engine.GetListing(id)
			if err != nil {
				t.Fatalf("%s: load %d: %v", step, id, err)
			}
			listed[listing.AssetID] = true
		}
		if len(inCustody) != len(listed) {
			t.Fatalf("%s: custody holds %d assets but ledger lists %d", step, len(inCustody), len(listed))
		}
		for assetID := range inCustody {
			if !listed[assetID] {
				t.Fatalf("%s: asset %d in custody without listing", step, assetID)
			}
		}
	}

	ids := make([]uint64, 0, 4)
	for assetID := uint64(1); assetID <= 4; assetID++ {
		params := defaultParams()
		params.AssetID = assetID
		ids = append(ids, env.createListing(t, params))
		check("after create")
	}
	if err := env.engine.CancelListing(ids[0], maker, assetBackendID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	check("after cancel")
	if _, err := env.engine.FulfilListing(ids[1], buyer, assetBackendID, nil); err != nil {
		t.Fatalf("fulfil: %v", err)
	}
	check("after fulfil")
	if _, err := env.engine.FulfilListing(ids[1], buyer, assetBackendID, nil); !errors.Is(err, ErrUnknownListing) {
		t.Fatalf("double fulfil must fail, got %v", err)
	}
	check("after double fulfil attempt")
}

func TestSetFeeRateGuards(t *testing.T) {
	env := newTestEnv(t)

	if err := env.engine.SetFeeRate(stranger, 100); !errors.Is(err, ErrUnauthorised) {
		t.Fatalf("expected ErrUnauthorised, got %v", err)
	}
	if err := env.engine.SetFeeRate(adminAddr, MaxFeeBps+1); !errors.Is(err, ErrInvalidFeeRate) {
		t.Fatalf("expected ErrInvalidFeeRate, got %v", err)
	}
	if err := env.engine.SetFeeRate(adminAddr, 1000); err != nil {
		t.Fatalf("set fee rate: %v", err)
	}
	policy, err := env.engine.GetFeePolicy()
	if err != nil {
		t.Fatalf("get fee policy: %v", err)
	}
	if policy.RateBps != 1000 {
		t.Fatalf("expected rate 1000, got %d", policy.RateBps)
	}
	for _, evt := range env.recorder.Events() {
		if evt.Type == EventTypeFeeRateChanged {
			if evt.Attributes["oldBps"] != "250" || evt.Attributes["newBps"] != "1000" {
				t.Fatalf("expected old/new bps in event, got %+v", evt.Attributes)
			}
		}
	}
}

func TestSetFeeRecipientGuards(t *testing.T) {
	env := newTestEnv(t)
	next := testAddr(0x44)

	if err := env.engine.SetFeeRecipient(stranger, next); !errors.Is(err, ErrUnauthorised) {
		t.Fatalf("expected ErrUnauthorised, got %v", err)
	}
	if err := env.engine.SetFeeRecipient(adminAddr, next); err != nil {
		t.Fatalf("set fee recipient: %v", err)
	}
	policy, err := env.engine.GetFeePolicy()
	if err != nil {
		t.Fatalf("get fee policy: %v", err)
	}
	if policy.Recipient != next {
		t.Fatalf("recipient not updated")
	}
}

func TestWhitelistDefaultDeny(t *testing.T) {
	env := newTestEnv(t)

	if env.engine.IsWhitelisted("neverregistered") {
		t.Fatalf("absent entries must read as false")
	}
	if err := env.engine.SetWhitelisted(stranger, "somebackend", true); !errors.Is(err, ErrUnauthorised) {
		t.Fatalf("expected ErrUnauthorised, got %v", err)
	}
	if err := env.engine.SetWhitelisted(adminAddr, assetBackendID, false); err != nil {
		t.Fatalf("revoke whitelist: %v", err)
	}
	if env.engine.IsWhitelisted(assetBackendID) {
		t.Fatalf("expected backend revoked")
	}
	env.mintAsset(t, 7, maker)
	if _, err := env.engine.CreateListing(maker, defaultParams()); !errors.Is(err, ErrAssetBackendNotWhitelisted) {
		t.Fatalf("expected ErrAssetBackendNotWhitelisted after revoke, got %v", err)
	}
}

func TestSummaryCountsExpiredBacklog(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	env.mintAsset(t, 8, maker)
	env.createListing(t, defaultParams())
	params := defaultParams()
	params.AssetID = 8
	params.Expiry = 120
	env.createListing(t, params)

	env.height = 150
	summary, err := env.engine.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Active != 2 || summary.Expired != 1 {
		t.Fatalf("expected active 2 expired 1, got %+v", summary)
	}
	if summary.EscrowedValue != 2_000_000 {
		t.Fatalf("expected escrowed value 2000000, got %d", summary.EscrowedValue)
	}
	if env.eventsOfType(EventTypeMarketSummary) != 1 {
		t.Fatalf("expected summary snapshot event")
	}
}

func TestExpiredListingStaysUntilCancelled(t *testing.T) {
	env := newTestEnv(t)
	env.mintAsset(t, 7, maker)
	id := env.createListing(t, defaultParams())
	env.native.balances[buyer] = 2_000_000

	env.height = 500
	if _, err := env.engine.FulfilListing(id, buyer, assetBackendID, nil); !errors.Is(err, ErrListingExpired) {
		t.Fatalf("expected ErrListingExpired, got %v", err)
	}
	// No sweep: the asset stays escrowed and the maker can still cancel.
	if env.assets.owners[7] != custodyAddr {
		t.Fatalf("asset must remain in custody past expiry")
	}
	if err := env.engine.CancelListing(id, maker, assetBackendID); err != nil {
		t.Fatalf("cancel after expiry: %v", err)
	}
	if env.assets.owners[7] != maker {
		t.Fatalf("asset not returned after late cancel")
	}
}
