// Package rpc exposes the escrow ledger as a JSON-RPC 2.0 API over HTTP.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/escrowlabs/escrowd/internal/config"
	"github.com/escrowlabs/escrowd/internal/middleware"
	"github.com/escrowlabs/escrowd/internal/service"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const maxRPCBodyBytes int64 = 1 << 20 // 1 MiB

// Server dispatches JSON-RPC methods to the service layer.
type Server struct {
	escrow  *service.EscrowService
	admin   *service.AdminService
	auth    *service.AuthService
	limiter *rateLimiter
}

// NewServer creates an RPC server over the given services.
func NewServer(escrowSvc *service.EscrowService, adminSvc *service.AdminService, authSvc *service.AuthService, rl config.RateLimitConfig) *Server {
	return &Server{
		escrow:  escrowSvc,
		admin:   adminSvc,
		auth:    authSvc,
		limiter: newRateLimiter(rl),
	}
}

// Handler returns the http.Handler serving the /rpc endpoint. The caller is
// expected to wrap it with the identity middleware so the request context
// carries the authenticated principal.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRPC)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.allow(rateLimitKey(r, middleware.GetToken(r.Context())), time.Now()) {
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeRateLimited, Message: "rate limit exceeded"},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32700, Message: "parse error"},
		})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	reqID := fmt.Sprintf("rpc_%d", time.Now().UnixNano())
	started := time.Now()
	slog.Info("rpc request", "request_id", reqID, "method", req.Method, "rpc_id", string(req.ID))

	result, rpcErr := s.dispatch(r.Context(), req.Method, req.Params)
	if rpcErr != nil {
		slog.Warn("rpc failed", "request_id", reqID, "method", req.Method, "rpc_code", rpcErr.Code, "latency_ms", time.Since(started).Milliseconds())
	} else {
		slog.Info("rpc response", "request_id", reqID, "method", req.Method, "latency_ms", time.Since(started).Milliseconds())
	}

	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	})
}

func (s *Server) dispatch(ctx context.Context, method string, rawParams json.RawMessage) (any, *rpcError) {
	if method == "health_check" {
		return map[string]string{"status": "ok"}, nil
	}
	if result, rpcErr, ok := s.dispatchAuth(ctx, method, rawParams); ok {
		return result, rpcErr
	}
	if result, rpcErr, ok := s.dispatchEscrow(ctx, method, rawParams); ok {
		return result, rpcErr
	}
	if result, rpcErr, ok := s.dispatchAdmin(ctx, method, rawParams); ok {
		return result, rpcErr
	}
	return nil, &rpcError{Code: -32601, Message: "method not found"}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: -32600, Message: "invalid request"},
	})
}
