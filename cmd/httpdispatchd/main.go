// Command httpdispatchd exposes the dispatch engine over a small HTTP
// submission surface, grounded on felipecampolina-FCReverseProxy's
// cmd/server/main.go wiring shape.
package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mchtech/httpdispatch"
)

func main() {
	cfg := httpdispatch.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	cache := httpdispatch.NewMemoryCache()
	executor := httpdispatch.NewHTTPExecutor(cfg)
	promoter := httpdispatch.DefaultPromoter{Interval: cfg.PromotionInterval()}

	mgr, err := httpdispatch.NewManager(cfg, cache, executor, httpdispatch.DefaultRetryPolicy{}, promoter,
		httpdispatch.WithLogger(httpdispatch.NewStdLogger(true)))
	if err != nil {
		log.Fatal(err)
	}
	defer mgr.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/submit", handleSubmit(mgr))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Printf("listening on :8080, max_concurrency=%d redirect_limit=%d", cfg.MaxConcurrency, cfg.RedirectLimit)
	log.Fatal(http.ListenAndServe(":8080", mux))
}

type submitRequest struct {
	URI           string            `json:"uri"`
	Method        string            `json:"method"`
	Body          []byte            `json:"body,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Idempotent    bool              `json:"idempotent"`
	StartPriority int               `json:"start_priority"`
	CachePriority int               `json:"cache_priority"`
	CacheBehavior int               `json:"cache_behavior"`
}

func handleSubmit(mgr *httpdispatch.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		method := httpdispatch.MethodGET
		if req.Method == string(httpdispatch.MethodPOST) {
			method = httpdispatch.MethodPOST
		}

		work, err := mgr.Submit(req.URI, method, req.Body, req.Headers, req.Idempotent,
			httpdispatch.StartingPriority(req.StartPriority), httpdispatch.CachePriority(req.CachePriority), httpdispatch.CacheBehavior(req.CacheBehavior))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := work.Wait(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		if resp == nil {
			http.Error(w, "no response", http.StatusNotFound)
			return
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Bytes)
	}
}
