package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kwtsai/visioncache/pkg/ai"
	"github.com/kwtsai/visioncache/pkg/cache"
)

const (
	// maxImageBytes caps uploaded analysis images.
	maxImageBytes = 10 << 20

	// requestTimeout bounds one upstream round trip including retries.
	requestTimeout = 120 * time.Second
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports readiness. A nil Redis client means the service runs
// without a backing store, which is a supported mode, so it stays ready.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, fmt.Sprintf("redis not ready: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

type analyzeResponse struct {
	Analysis string `json:"analysis"`
	Cached   bool   `json:"cached"`
}

func analyzeHandler(svc *ai.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		image, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes))
		if err != nil {
			http.Error(w, "failed to read image", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		result, err := svc.AnalyzeImage(ctx, image)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, analyzeResponse{Analysis: result.Value, Cached: result.Cached})
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	URL    string `json:"url"`
	Cached bool   `json:"cached"`
}

func generateHandler(svc *ai.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		result, err := svc.GenerateImage(ctx, req.Prompt)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, generateResponse{URL: result.Value, Cached: result.Cached})
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, cache.ErrEmptyInput) {
		http.Error(w, "empty input", http.StatusBadRequest)
		return
	}
	http.Error(w, fmt.Sprintf("upstream request failed: %v", err), http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
