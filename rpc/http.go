package rpc

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketd/core/events"
	"marketd/native/market"
	"marketd/native/reputation"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000

	codeMarketInvalidParams = -32021
	codeMarketNotFound      = -32022
	codeMarketForbidden     = -32023
	codeMarketConflict      = -32024
	codeMarketInternal      = -32025
)

// Server exposes the marketplace operations and query surface over a single
// JSON-RPC 2.0 endpoint. Mutating methods require the shared token when one
// is configured via MARKETD_RPC_TOKEN.
type Server struct {
	engine     *market.Engine
	reputation *reputation.Ledger
	recorder   *events.Recorder
	authToken  string
	log        *slog.Logger
}

// NewServer wires the RPC surface. recorder may be nil when no in-process
// event feed is wanted.
func NewServer(engine *market.Engine, ledger *reputation.Ledger, recorder *events.Recorder, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:     engine,
		reputation: ledger,
		recorder:   recorder,
		authToken:  strings.TrimSpace(os.Getenv("MARKETD_RPC_TOKEN")),
		log:        log,
	}
}

// Router assembles the HTTP handler: health, metrics and the RPC endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr, blocking until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token := strings.TrimPrefix(header, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required")
		return
	}

	handler, ok := s.routes()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
		return
	}
	if handler.mutating && !s.requireAuth(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid or missing token")
		return
	}
	handler.fn(w, &req)
}

type route struct {
	mutating bool
	fn       func(http.ResponseWriter, *RPCRequest)
}

func (s *Server) routes() map[string]route {
	return map[string]route{
		"market_createListing":   {mutating: true, fn: s.handleCreateListing},
		"market_cancelListing":   {mutating: true, fn: s.handleCancelListing},
		"market_fulfilListing":   {mutating: true, fn: s.handleFulfilListing},
		"market_setWhitelist":    {mutating: true, fn: s.handleSetWhitelist},
		"market_setFeeRate":      {mutating: true, fn: s.handleSetFeeRate},
		"market_setFeeRecipient": {mutating: true, fn: s.handleSetFeeRecipient},
		"market_getListing":      {fn: s.handleGetListing},
		"market_getMetadata":     {fn: s.handleGetMetadata},
		"market_previewFee":      {fn: s.handlePreviewFee},
		"market_getFeePolicy":    {fn: s.handleGetFeePolicy},
		"market_isWhitelisted":   {fn: s.handleIsWhitelisted},
		"market_summary":         {fn: s.handleSummary},
		"reputation_get":         {fn: s.handleReputationGet},
		"market_events":          {fn: s.handleEvents},
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("params required")
	}
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q", value)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("invalid address %q: want 20 bytes", value)
	}
	copy(addr[:], raw)
	return addr, nil
}
