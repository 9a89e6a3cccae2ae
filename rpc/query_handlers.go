package rpc

import (
	"encoding/hex"
	"net/http"

	"marketd/native/market"
)

func hexAddr(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

type idParams struct {
	ID uint64 `json:"id"`
}

type priceParams struct {
	Price uint64 `json:"price"`
}

type backendParams struct {
	Backend string `json:"backend"`
}

type principalParams struct {
	Principal string `json:"principal"`
}

type metadataJSON struct {
	ID         uint64 `json:"id"`
	Category   string `json:"category"`
	Collection string `json:"collection"`
	ListedAt   uint64 `json:"listedAt"`
}

type feePolicyJSON struct {
	RateBps   uint32 `json:"rateBps"`
	Recipient string `json:"recipient"`
}

type feeSplitJSON struct {
	Price uint64 `json:"price"`
	Fee   uint64 `json:"fee"`
	Net   uint64 `json:"net"`
}

type reputationJSON struct {
	Principal      string `json:"principal"`
	TotalSales     uint64 `json:"totalSales"`
	TotalPurchases uint64 `json:"totalPurchases"`
	CompletionRate uint32 `json:"completionRate"`
}

type summaryJSON struct {
	Height        uint64 `json:"height"`
	Active        uint64 `json:"active"`
	Expired       uint64 `json:"expired"`
	EscrowedValue uint64 `json:"escrowedValue"`
}

func (s *Server) handleGetListing(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	listing, err := s.engine.GetListing(params.ID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	meta, ok, err := s.engine.GetMetadata(params.ID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMarketNotFound, market.ErrUnknownListing.Error())
		return
	}
	writeResult(w, req.ID, &metadataJSON{
		ID:         meta.ID,
		Category:   meta.Category,
		Collection: meta.Collection,
		ListedAt:   meta.ListedAt,
	})
}

func (s *Server) handlePreviewFee(w http.ResponseWriter, req *RPCRequest) {
	var params priceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	fee, net, err := s.engine.PreviewSplit(params.Price)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &feeSplitJSON{Price: params.Price, Fee: fee, Net: net})
}

func (s *Server) handleGetFeePolicy(w http.ResponseWriter, req *RPCRequest) {
	policy, err := s.engine.GetFeePolicy()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &feePolicyJSON{
		RateBps:   policy.RateBps,
		Recipient: hexAddr(policy.Recipient),
	})
}

func (s *Server) handleIsWhitelisted(w http.ResponseWriter, req *RPCRequest) {
	var params backendParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	writeResult(w, req.ID, map[string]bool{"allowed": s.engine.IsWhitelisted(params.Backend)})
}

func (s *Server) handleSummary(w http.ResponseWriter, req *RPCRequest) {
	summary, err := s.engine.Summary()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &summaryJSON{
		Height:        summary.Height,
		Active:        summary.Active,
		Expired:       summary.Expired,
		EscrowedValue: summary.EscrowedValue,
	})
}

func (s *Server) handleReputationGet(w http.ResponseWriter, req *RPCRequest) {
	var params principalParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	principal, err := parseAddress(params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	record, err := s.reputation.Get(principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error())
		return
	}
	writeResult(w, req.ID, &reputationJSON{
		Principal:      params.Principal,
		TotalSales:     record.TotalSales,
		TotalPurchases: record.TotalPurchases,
		CompletionRate: record.CompletionRate,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, req *RPCRequest) {
	if s.recorder == nil {
		writeResult(w, req.ID, []struct{}{})
		return
	}
	writeResult(w, req.ID, s.recorder.Events())
}
