package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/receipt-insights/internal/aggregate"
	"github.com/zombor/receipt-insights/internal/insights"
	"github.com/zombor/receipt-insights/internal/receipt"
	"github.com/zombor/receipt-insights/internal/scanning"
)

// maxUploadSize fits high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// writeJSON encodes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusForModelError maps model call failures to a status code
func statusForModelError(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

// detectUploadType falls back to the file extension when the part has no Content-Type
func detectUploadType(header string, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleExtractReceipt stores an uploaded image and returns the extracted draft.
// Nothing is saved as a receipt until the reviewed draft is posted back.
func (s *Server) handleExtractReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "File is too large. Maximum size is 50MB. Please compress or resize your image.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := detectUploadType(header.Header.Get("Content-Type"), header.Filename)

	draft, err := s.service.ScanReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error extracting receipt", "filename", header.Filename, "error", err)

		var formatErr *scanning.ExtractionFormatError
		var storageErr *receipt.StorageError
		switch {
		case errors.As(err, &formatErr):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   formatErr.Error(),
				"excerpt": formatErr.Excerpt,
			})
		case errors.Is(err, receipt.ErrPermissionDenied):
			writeError(w, http.StatusForbidden, "Permission denied while storing the image")
		case errors.As(err, &storageErr):
			writeError(w, http.StatusInternalServerError, storageErr.Error())
		case errors.Is(err, scanning.ErrUnsupportedImage):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		default:
			writeError(w, statusForModelError(err), err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, draft)
}

// handleCreateReceipt saves a reviewed draft
func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var draft receipt.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := s.service.CreateReceipt(r.Context(), &draft)
	if err != nil {
		slog.Error("Error creating receipt", "error", err)

		var persistErr *receipt.PersistenceError
		switch {
		case errors.Is(err, receipt.ErrAlreadyPersisted):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &persistErr):
			writeError(w, http.StatusInternalServerError, persistErr.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, saved)
}

// handleListReceipts returns every receipt, newest first
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts(r.Context())
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		message := "Internal server error"
		var persistErr *receipt.PersistenceError
		if errors.As(err, &persistErr) {
			message = persistErr.Error()
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":    message,
			"receipts": []*receipt.Receipt{},
		})
		return
	}

	writeJSON(w, http.StatusOK, receipts)
}

// handleGetImage returns a stored receipt image
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	data, err := s.service.GetImage(r.Context(), ref)
	if err != nil {
		switch {
		case errors.Is(err, receipt.ErrNotFound):
			writeError(w, http.StatusNotFound, "Image not found")
		case errors.Is(err, receipt.ErrPermissionDenied):
			writeError(w, http.StatusForbidden, "Permission denied")
		default:
			slog.Error("Error reading image", "image_reference", ref, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	if _, err := w.Write(data); err != nil {
		slog.Error("Error writing image", "image_reference", ref, "error", err)
	}
}

type summaryResponse struct {
	aggregate.Summary
	Empty bool `json:"empty"`
}

// handleSummary returns chart series and totals over all receipts
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts(r.Context())
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary := aggregate.SummarizeIn(receipts, s.location)
	writeJSON(w, http.StatusOK, summaryResponse{Summary: summary, Empty: summary.Empty()})
}

// handleInsights returns model commentary over all receipts
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts(r.Context())
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	text, err := s.advisor.Insights(r.Context(), receipts)
	if err != nil {
		slog.Error("Error generating insights", "error", err)
		writeError(w, statusForModelError(err), "Error generating insights: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"insights": text})
}

// handleChat answers a question about the user's spending
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipts, err := s.service.ListReceipts(r.Context())
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reply, err := s.advisor.Chat(r.Context(), receipts, req.Message)
	if err != nil {
		if errors.Is(err, insights.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "Message is required")
			return
		}
		slog.Error("Error generating chat reply", "error", err)
		writeError(w, statusForModelError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
