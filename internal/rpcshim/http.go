package rpcshim

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/credible-commitment/ccm-core/internal/obs"
)

// NewHTTPRouter builds the HTTP compatibility shim: POST /rpc carries the
// same JSON-RPC envelope as the Unix socket transport, plus GET /healthz and
// GET /metrics for operational tooling that can't speak the socket
// protocol. Route layout follows a mux.NewRouter()-per-concern,
// HandleFunc(path, handler).Methods(verb) shape.
func NewHTTPRouter(handler *Handler, metrics *obs.Metrics, log *zap.Logger) *mux.Router {
	if log == nil {
		log = zap.NewNop()
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/rpc", handleRPC(handler, log)).Methods(http.MethodPost)
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

func handleRPC(handler *Handler, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 4*1024*1024))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, &Response{JSONRPC: "2.0", Error: &RPCError{Code: codeParseError, Message: "failed to read request body"}})
			return
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusOK, &Response{JSONRPC: "2.0", Error: &RPCError{Code: codeParseError, Message: "malformed JSON-RPC request"}})
			return
		}

		resp := handler.Handle(req)
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
