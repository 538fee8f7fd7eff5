package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratigraph/internal/export"
	"github.com/dusk-indust/stratigraph/internal/strata"
	"github.com/dusk-indust/stratigraph/internal/validation"
)

// Handler serves the validation endpoints.
type Handler struct {
	svc    *validation.Service
	logger *zap.Logger
}

type healthResponse struct {
	Status     string `json:"status"`
	Engine     string `json:"engine"`
	Generation uint64 `json:"generation"`
}

type relationsResponse struct {
	Relations []strata.Relation `json:"relations"`
	Count     int               `json:"count"`
}

type commitResponse struct {
	Relation strata.Relation         `json:"relation"`
	Result   strata.ValidationResult `json:"result"`
}

type batchRequest struct {
	Relations []strata.Relation `json:"relations"`
}

type batchResponse struct {
	Items      []validation.BatchItem `json:"items"`
	Failed     int                    `json:"failed"`
	Incomplete bool                   `json:"incomplete,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps service errors onto status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrUnknownRelation):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, validation.ErrBatchRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, strata.ErrMissingEndpoint):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeRelation reads a relation body and checks its identifiers. An empty
// ID is allowed when allowEmptyID is set.
func decodeRelation(r *http.Request, allowEmptyID bool) (strata.Relation, error) {
	var rel strata.Relation
	if err := json.NewDecoder(r.Body).Decode(&rel); err != nil {
		return rel, fmt.Errorf("invalid request body: %w", err)
	}
	rel.Live = true
	return rel, checkRecord(rel, allowEmptyID)
}

func checkRecord(rel strata.Relation, allowEmptyID bool) error {
	if allowEmptyID && rel.ID == "" {
		// Validate the rest with a placeholder ID.
		rel.ID = "00000000-0000-0000-0000-000000000000"
	}
	return strata.ValidateRecord(rel)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Engine:     h.svc.EngineName(),
		Generation: h.svc.Generation(),
	})
}

func (h *Handler) ListRelations(w http.ResponseWriter, r *http.Request) {
	rels, err := h.svc.Relations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rels == nil {
		rels = []strata.Relation{}
	}
	writeJSON(w, http.StatusOK, relationsResponse{Relations: rels, Count: len(rels)})
}

func (h *Handler) GetRelation(w http.ResponseWriter, r *http.Request) {
	rel, err := h.svc.Relation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// Validate checks a stored relation through the engine.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ValidateRelation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Propose runs the proposal pipeline without storing anything.
func (h *Handler) Propose(w http.ResponseWriter, r *http.Request) {
	rel, err := decodeRelation(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.ValidateNew(r.Context(), rel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Commit stores a relation that passes validation. Rejected relations get
// 409 with the validation result.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	rel, err := decodeRelation(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rel, res, err := h.svc.Commit(r.Context(), rel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if !res.OK {
		status = http.StatusConflict
	}
	writeJSON(w, status, commitResponse{Relation: rel, Result: res})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Batch validates many proposals in chunks.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for i := range req.Relations {
		req.Relations[i].Live = true
		if err := checkRecord(req.Relations[i], false); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("relation #%d: %v", i+1, err))
			return
		}
	}

	var last validation.Progress
	items, err := h.svc.ValidateBatch(r.Context(), req.Relations, func(p validation.Progress) { last = p })
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, batchResponse{Items: items, Failed: last.Failed})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Items checked before the stop are still returned.
		h.logger.Warn("batch stopped",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Int("done", len(items)),
			zap.Int("total", len(req.Relations)),
			zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, batchResponse{
			Items:      items,
			Failed:     last.Failed,
			Incomplete: true,
			Error:      err.Error(),
		})
	default:
		h.fail(w, r, err)
	}
}

// Audit lists every paradox on the site.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	out, err := export.ExportAudit(r.Context(), h.svc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Diagram renders the groups as Mermaid text.
func (h *Handler) Diagram(w http.ResponseWriter, r *http.Request) {
	out, err := export.GenerateMermaid(r.Context(), h.svc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(out))
}
