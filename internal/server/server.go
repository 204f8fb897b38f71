// Package server exposes receipts, aggregates and model commentary over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zombor/receipt-insights/internal/receipt"
)

// ReceiptService is the capture and retrieval flow used by the handlers
type ReceiptService interface {
	ScanReceipt(ctx context.Context, filename string, data []byte, contentType string) (*receipt.Draft, error)
	CreateReceipt(ctx context.Context, draft *receipt.Draft) (*receipt.Receipt, error)
	ListReceipts(ctx context.Context) ([]*receipt.Receipt, error)
	GetImage(ctx context.Context, ref string) ([]byte, error)
}

// Advisor produces model commentary about receipts
type Advisor interface {
	Insights(ctx context.Context, receipts []*receipt.Receipt) (string, error)
	Chat(ctx context.Context, receipts []*receipt.Receipt, question string) (string, error)
}

// Server handles HTTP requests for receipts
type Server struct {
	service  ReceiptService
	advisor  Advisor
	mux      *http.ServeMux
	location *time.Location
}

// NewServer creates a new Server with default mux
func NewServer(service ReceiptService, advisor Advisor) *Server {
	return NewServerWithMux(service, advisor, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service ReceiptService, advisor Advisor, mux *http.ServeMux) *Server {
	s := &Server{
		service:  service,
		advisor:  advisor,
		mux:      mux,
		location: time.UTC,
	}
	s.registerRoutes()
	return s
}

// WithLocation sets the time zone used to bucket receipts by month
func (s *Server) WithLocation(loc *time.Location) *Server {
	if loc != nil {
		s.location = loc
	}
	return s
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsMiddleware adds CORS headers to every response and answers preflight requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/extractions", s.handleExtractReceipt)

	s.mux.HandleFunc("GET /api/receipts", s.handleListReceipts)
	s.mux.HandleFunc("POST /api/receipts", s.handleCreateReceipt)

	s.mux.HandleFunc("GET /api/images/{ref}", s.handleGetImage)

	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/insights", s.handleInsights)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	corsMiddleware(s.mux).ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
