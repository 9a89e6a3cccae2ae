package rpc

import (
	"errors"
	"net/http"

	"marketd/native/market"
	"marketd/observability/metrics"
)

type createListingParams struct {
	Maker          string  `json:"maker"`
	AssetID        uint64  `json:"assetId"`
	AssetBackend   string  `json:"assetBackend"`
	Taker          *string `json:"taker,omitempty"`
	Expiry         uint64  `json:"expiry"`
	Price          uint64  `json:"price"`
	PaymentBackend *string `json:"paymentBackend,omitempty"`
	Category       string  `json:"category,omitempty"`
	Collection     string  `json:"collection,omitempty"`
}

type cancelListingParams struct {
	ID           uint64 `json:"id"`
	Caller       string `json:"caller"`
	AssetBackend string `json:"assetBackend"`
}

type fulfilListingParams struct {
	ID             uint64  `json:"id"`
	Caller         string  `json:"caller"`
	AssetBackend   string  `json:"assetBackend"`
	PaymentBackend *string `json:"paymentBackend,omitempty"`
}

type setWhitelistParams struct {
	Caller  string `json:"caller"`
	Backend string `json:"backend"`
	Allowed bool   `json:"allowed"`
}

type setFeeRateParams struct {
	Caller  string `json:"caller"`
	RateBps uint32 `json:"rateBps"`
}

type setFeeRecipientParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

type listingJSON struct {
	ID             uint64  `json:"id"`
	Maker          string  `json:"maker"`
	Taker          *string `json:"taker,omitempty"`
	AssetID        uint64  `json:"assetId"`
	AssetBackend   string  `json:"assetBackend"`
	Expiry         uint64  `json:"expiry"`
	Price          uint64  `json:"price"`
	PaymentBackend string  `json:"paymentBackend"`
}

func listingToJSON(l *market.Listing) *listingJSON {
	if l == nil {
		return nil
	}
	out := &listingJSON{
		ID:             l.ID,
		Maker:          hexAddr(l.Maker),
		AssetID:        l.AssetID,
		AssetBackend:   l.AssetBackend,
		Expiry:         l.Expiry,
		Price:          l.Price,
		PaymentBackend: "native",
	}
	if taker, ok := l.RestrictedTo(); ok {
		encoded := hexAddr(taker)
		out.Taker = &encoded
	}
	if payment, ok := l.Payment(); ok {
		out.PaymentBackend = payment
	}
	return out
}

// writeMarketError maps ledger errors onto the stable marketplace error
// codes. Adapter failures and anything unrecognised surface as internal.
func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, market.ErrUnknownListing):
		writeError(w, http.StatusNotFound, id, codeMarketNotFound, err.Error())
	case errors.Is(err, market.ErrUnauthorised),
		errors.Is(err, market.ErrMakerTakerEqual),
		errors.Is(err, market.ErrUnintendedTaker):
		writeError(w, http.StatusForbidden, id, codeMarketForbidden, err.Error())
	case errors.Is(err, market.ErrExpiryInPast),
		errors.Is(err, market.ErrPriceZero),
		errors.Is(err, market.ErrInvalidFeeRate):
		writeError(w, http.StatusBadRequest, id, codeMarketInvalidParams, err.Error())
	case errors.Is(err, market.ErrAssetMismatch),
		errors.Is(err, market.ErrPaymentAssetMismatch),
		errors.Is(err, market.ErrAssetBackendNotWhitelisted),
		errors.Is(err, market.ErrPaymentBackendNotWhitelisted),
		errors.Is(err, market.ErrListingExpired):
		writeError(w, http.StatusConflict, id, codeMarketConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeMarketInternal, err.Error())
	}
}

func (s *Server) handleCreateListing(w http.ResponseWriter, req *RPCRequest) {
	var params createListingParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	maker, err := parseAddress(params.Maker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	input := market.CreateListingParams{
		AssetID:        params.AssetID,
		AssetBackend:   params.AssetBackend,
		Expiry:         params.Expiry,
		Price:          params.Price,
		PaymentBackend: params.PaymentBackend,
		Category:       params.Category,
		Collection:     params.Collection,
	}
	if params.Taker != nil {
		taker, err := parseAddress(*params.Taker)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return
		}
		input.Taker = &taker
	}
	id, err := s.engine.CreateListing(maker, input)
	metrics.ObserveOp("create_listing", err)
	if err != nil {
		s.log.Warn("create listing rejected", "maker", params.Maker, "err", err)
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"id": id})
}

func (s *Server) handleCancelListing(w http.ResponseWriter, req *RPCRequest) {
	var params cancelListingParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	err = s.engine.CancelListing(params.ID, caller, params.AssetBackend)
	metrics.ObserveOp("cancel_listing", err)
	if err != nil {
		if !errors.Is(err, market.ErrUnknownListing) {
			s.log.Warn("cancel listing failed", "id", params.ID, "err", err)
		}
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
}

func (s *Server) handleFulfilListing(w http.ResponseWriter, req *RPCRequest) {
	var params fulfilListingParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	listing, err := s.engine.FulfilListing(params.ID, caller, params.AssetBackend, params.PaymentBackend)
	metrics.ObserveOp("fulfil_listing", err)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleSetWhitelist(w http.ResponseWriter, req *RPCRequest) {
	var params setWhitelistParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	err = s.engine.SetWhitelisted(caller, params.Backend, params.Allowed)
	metrics.ObserveOp("set_whitelist", err)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleSetFeeRate(w http.ResponseWriter, req *RPCRequest) {
	var params setFeeRateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	err = s.engine.SetFeeRate(caller, params.RateBps)
	metrics.ObserveOp("set_fee_rate", err)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleSetFeeRecipient(w http.ResponseWriter, req *RPCRequest) {
	var params setFeeRecipientParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	err = s.engine.SetFeeRecipient(caller, recipient)
	metrics.ObserveOp("set_fee_recipient", err)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}
