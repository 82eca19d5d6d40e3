package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"leasehub/core"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// maxLimiterSources bounds the per-source limiter map. When the cap is
	// reached the map is dropped wholesale; affected sources restart with a
	// full burst budget, which errs on the permissive side.
	maxLimiterSources = 4_096
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Options configure the RPC server surface.
type Options struct {
	// AuthToken guards mutating methods when non-empty; callers present it
	// as a bearer token.
	AuthToken string
	// RateLimitPerMin bounds requests per source address. Zero disables
	// limiting.
	RateLimitPerMin int
}

// Server exposes the marketplace node over JSON-RPC 2.0.
type Server struct {
	node      *core.Node
	authToken string
	perMin    int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer constructs the RPC server around a node.
func NewServer(node *core.Node, opts Options) *Server {
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(opts.AuthToken),
		perMin:    opts.RateLimitPerMin,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Router returns the HTTP handler: JSON-RPC on POST /, plus health and
// metrics endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) limiter(source string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		if len(s.limiters) >= maxLimiterSources {
			s.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rate.Limit(float64(s.perMin)/60.0), s.perMin)
		s.limiters[source] = limiter
	}
	return limiter
}

func (s *Server) allow(r *http.Request) bool {
	if s.perMin <= 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return s.limiter(host).Allow()
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	presented := strings.TrimSpace(header[len(prefix):])
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate_limited", "too many requests")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "unsupported jsonrpc version")
		return
	}
	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		return
	}
	if handler.mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	handler.fn(w, &req)
}

type method struct {
	mutating bool
	fn       func(http.ResponseWriter, *RPCRequest)
}

func (s *Server) methods() map[string]method {
	return map[string]method{
		"rental_list":            {mutating: true, fn: s.handleRentalList},
		"rental_rent":            {mutating: true, fn: s.handleRentalRent},
		"rental_complete":        {mutating: true, fn: s.handleRentalComplete},
		"rental_cancel":          {mutating: true, fn: s.handleRentalCancel},
		"rental_claim":           {mutating: true, fn: s.handleRentalClaim},
		"rental_get":             {fn: s.handleRentalGet},
		"rental_listByAccount":   {fn: s.handleRentalsByAccount},
		"rental_feePolicy":       {fn: s.handleFeePolicy},
		"rental_setFeeBps":       {mutating: true, fn: s.handleSetFeeBps},
		"rental_setFeeCollector": {mutating: true, fn: s.handleSetFeeCollector},
		"assets_holder":          {fn: s.handleAssetHolder},
		"assets_mint":            {mutating: true, fn: s.handleAssetMint},
		"bank_balance":           {fn: s.handleBankBalance},
		"bank_mint":              {mutating: true, fn: s.handleBankMint},
	}
}

func singleParam(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: err.Error()}
	}
	return nil
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

func writeRPCError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	status := http.StatusBadRequest
	switch rpcErr.Code {
	case codeUnauthorized:
		status = http.StatusUnauthorized
	case codeServerError:
		status = http.StatusInternalServerError
	}
	writeError(w, status, id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
}
