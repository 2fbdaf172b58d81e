package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/port"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const (
	inputDir  = "input"
	outputDir = "output"

	// maxUploadMemory is how much of a multipart body is kept in memory before spilling to disk.
	maxUploadMemory = 32 << 20
)

type BatchService interface {
	Submit(ctx context.Context, uploads []port.Upload, mode domain.Mode) (string, error)
	Status(ctx context.Context, batchID string) (domain.BatchStatus, error)
	Purge(ctx context.Context, batchID string) error
}

type FileResolver interface {
	Resolve(batchID, dir, name string) (string, error)
}

// HTTP exposes async batch submission, status queries and the batch files.
type HTTP struct {
	batches   BatchService
	files     FileResolver
	maxUpload int64
}

// NewHTTP builds the surface. maxUpload caps the whole multipart body of a batch submission.
func NewHTTP(batches BatchService, files FileResolver, maxUpload int64) *HTTP {
	return &HTTP{batches: batches, files: files, maxUpload: maxUpload}
}

func (h *HTTP) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/batches", h.submit).Methods(http.MethodPost)
	api.HandleFunc("/batches/{id}", h.status).Methods(http.MethodGet)
	api.HandleFunc("/batches/{id}", h.purge).Methods(http.MethodDelete)
	api.HandleFunc("/download/{batch}/{file}", h.serveFrom(outputDir)).Methods(http.MethodGet)
	api.HandleFunc("/temp-images/{batch}/{file}", h.serveFrom(inputDir)).Methods(http.MethodGet)

	r.Use(logRequests)

	return r
}

type submitResponse struct {
	BatchID string `json:"batch_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTP) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode, err := domain.ParseMode(r.FormValue("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	headers := r.MultipartForm.File["files"]
	uploads := make([]port.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			log.Warn().Err(err).Str("file", fh.Filename).Msg("could not open uploaded file")
			continue
		}
		defer f.Close()

		uploads = append(uploads, port.Upload{Name: fh.Filename, Body: f})
	}

	batchID, err := h.batches.Submit(r.Context(), uploads, mode)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{BatchID: batchID})
}

func (h *HTTP) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.batches.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *HTTP) purge(w http.ResponseWriter, r *http.Request) {
	if err := h.batches.Purge(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) serveFrom(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		path, err := h.files.Resolve(vars["batch"], dir, vars["file"])
		if err != nil {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, path)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("could not write response")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("handling request")
		next.ServeHTTP(w, r)
	})
}
