package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/josh-kwaku/starbridge/internal/logging"
)

type refundRequest struct {
	BuyerID   int64  `json:"buyer_id"`
	ChargeRef string `json:"charge_ref"`
}

type gateway struct {
	mu       sync.Mutex
	refunded map[string]bool
}

func (g *gateway) refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChargeRef == "" || req.BuyerID == 0 {
		http.Error(w, `{"error":"buyer_id and charge_ref are required"}`, http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	already := g.refunded[req.ChargeRef]
	g.refunded[req.ChargeRef] = true
	g.mu.Unlock()

	if already {
		slog.Warn("charge already refunded", "charge_ref", req.ChargeRef)
		http.Error(w, `{"error":"charge already refunded"}`, http.StatusConflict)
		return
	}

	slog.Info("charge refunded", "buyer_id", req.BuyerID, "charge_ref", req.ChargeRef)
	writeJSON(w, map[string]string{"status": "refunded"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func main() {
	logging.Init("mock-gateway", "info", os.Getenv("APP_ENV"))

	g := &gateway{refunded: make(map[string]bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /refund", g.refund)

	slog.Info("mock gateway started", "addr", ":8081")
	if err := http.ListenAndServe(":8081", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
