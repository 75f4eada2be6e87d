// Command mock-endpoints runs local destinations for test notifications:
// a receiver that always succeeds, a slow one and one that always fails.
// When MOCK_SECRET is set, X-Alert-Signature is verified on every request.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type receiver struct {
	secret   string
	logger   *slog.Logger
	requests atomic.Int64
	rejected atomic.Int64
}

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	rc := &receiver{
		secret: os.Getenv("MOCK_SECRET"),
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/notify/success", rc.handle(http.StatusOK, 0))
	r.Post("/notify/slow", rc.handle(http.StatusOK, 3*time.Second))
	r.Post("/notify/fail", rc.handle(http.StatusInternalServerError, 0))
	r.Get("/stats", rc.stats)

	rc.logger.Info("mock endpoint server starting",
		"port", port,
		"verify_signatures", rc.secret != "",
	)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		rc.logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (rc *receiver) handle(status int, delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count := rc.requests.Add(1)
		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))

		sig := r.Header.Get("X-Alert-Signature")
		if rc.secret != "" && !validSignature(body, sig, rc.secret) {
			rc.rejected.Add(1)
			rc.logger.Warn("invalid signature", "request", count, "alert", r.Header.Get("X-Alert-Name"))
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}

		if delay > 0 {
			time.Sleep(delay)
		}

		rc.logger.Info("notification received",
			"request", count,
			"path", r.URL.Path,
			"status", status,
			"alert", r.Header.Get("X-Alert-Name"),
			"job", r.Header.Get("X-Alert-Job"),
			"attempt", r.Header.Get("X-Alert-Attempt"),
			"bytes", len(body),
		)

		if status >= 400 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		writeJSON(w, status, map[string]string{"status": "received"})
	}
}

func (rc *receiver) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{
		"total_requests": rc.requests.Load(),
		"rejected":       rc.rejected.Load(),
	})
}

func validSignature(body []byte, sig, secret string) bool {
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
