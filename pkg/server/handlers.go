package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	apperr "github.com/nikhilxb/xnode-db/pkg/errors"
	"github.com/nikhilxb/xnode-db/pkg/pipeline"
	"github.com/nikhilxb/xnode-db/pkg/render"
	"github.com/nikhilxb/xnode-db/pkg/schema"
	"github.com/nikhilxb/xnode-db/pkg/store"
)

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// namespaceBody answers a namespace request: the snapshot's metadata, the
// variable bindings, and a shell for every bound symbol.
type namespaceBody struct {
	ID        string                    `json:"id"`
	Context   string                    `json:"context"`
	CreatedAt time.Time                 `json:"created_at"`
	Truncated bool                      `json:"truncated,omitempty"`
	Names     map[string]string         `json:"names"`
	Shells    map[string]*schema.Symbol `json:"shells"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends err as a JSON error body. Errors without a code are
// logged and reported as internal errors without their text.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	code := apperr.GetCode(err)
	msg := apperr.UserMessage(err)
	if code == "" || code == apperr.ErrCodeInternal {
		logger.Error("request failed", "error", err)
		code = apperr.ErrCodeInternal
		msg = "internal error"
	}
	writeJSON(w, apperr.HTTPStatus(code), errorBody{Code: code, Message: msg})
}

func notFound(format string, args ...any) error {
	return apperr.New(apperr.ErrCodeNotFound, format, args...)
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if infos == nil {
		infos = []store.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	snap, err := schema.ReadJSON(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, s.logger, apperr.Wrap(apperr.ErrCodeInvalidSnapshot, err, "snapshot larger than %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, s.logger, apperr.Wrap(apperr.ErrCodeInvalidSnapshot, err, "%v", err))
		return
	}
	if err := apperr.ValidateSnapshotID(snap.ID); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.store.Save(r.Context(), snap); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.runner.ForgetSnapshot(r.Context(), snap.ID)
	s.logger.Info("stored snapshot", "id", snap.ID, "symbols", len(snap.Symbols))

	w.Header().Set("Location", "/api/snapshots/"+snap.ID)
	writeJSON(w, http.StatusCreated, store.InfoOf(snap))
}

func (s *Server) handleNamespace(w http.ResponseWriter, r *http.Request) {
	snap, err := s.runner.LoadSnapshot(r.Context(), s.store, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, namespaceBody{
		ID:        snap.ID,
		Context:   snap.Context,
		CreatedAt: snap.CreatedAt,
		Truncated: snap.Truncated,
		Names:     snap.Namespace,
		Shells:    snap.Shells(),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := apperr.ValidateSnapshotID(id); err != nil {
		writeError(w, s.logger, err)
		return
	}
	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		err = apperr.Wrap(apperr.ErrCodeSnapshotNotFound, err, "snapshot %s", id)
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.runner.ForgetSnapshot(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSymbol(w http.ResponseWriter, r *http.Request) {
	ref, err := url.PathUnescape(chi.URLParam(r, "ref"))
	if err == nil {
		err = apperr.ValidateSymbolRef(ref)
	}
	if err != nil {
		writeError(w, s.logger, apperr.Wrap(apperr.ErrCodeInvalidSymbol, err, "malformed symbol id"))
		return
	}

	snap, err := s.runner.LoadSnapshot(r.Context(), s.store, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	payload, err := snap.Load(ref)
	switch {
	case errors.Is(err, schema.ErrUnknownSymbol):
		err = apperr.Wrap(apperr.ErrCodeSymbolNotFound, err, "symbol %s not in snapshot", ref)
	case errors.Is(err, schema.ErrNotLoaded):
		err = apperr.Wrap(apperr.ErrCodeSymbolNotFound, err, "symbol %s was not captured (snapshot truncated)", ref)
	case errors.Is(err, schema.ErrInvalidRef):
		err = apperr.Wrap(apperr.ErrCodeInvalidSymbol, err, "malformed symbol id %q", ref)
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if err := apperr.ValidateFormat(format); err != nil {
		writeError(w, s.logger, err)
		return
	}
	q := r.URL.Query()
	opts := pipeline.Options{Formats: []string{format}, Head: q.Get("head")}
	if v := q.Get("detailed"); v != "" {
		detailed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, s.logger, apperr.New(apperr.ErrCodeInvalidInput, "detailed must be a boolean, got %q", v))
			return
		}
		opts.Detailed = detailed
	}

	snap, err := s.runner.LoadSnapshot(r.Context(), s.store, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	artifacts, err := s.runner.Render(r.Context(), snap, opts)
	if errors.Is(err, render.ErrNoConverter) {
		err = apperr.Wrap(apperr.ErrCodeUnsupported, err, "%s output is not available on this server", format)
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", render.ContentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifacts[format])
}
