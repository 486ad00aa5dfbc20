package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/query"
)

// Handler holds API route handlers.
type Handler struct {
	engine *query.Engine
}

// NewHandler creates a new Handler.
func NewHandler(engine *query.Engine) *Handler {
	return &Handler{engine: engine}
}

// resourceIDsParam reads the repeatable resource_id query parameter into the
// polymorphic shape the engine validates.
func resourceIDsParam(r *http.Request) any {
	ids := r.URL.Query()["resource_id"]
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return ids[0]
	default:
		return ids
	}
}

// GetResources handles GET /discovery/resources.
//
//	@Summary	List registered dbt project resources
//	@Tags		discovery
//	@Produce	json
//	@Param		filter			query		string	false	"Name or alias filter"
//	@Param		category		query		string	false	"Category filter"
//	@Param		show_details	query		bool	false	"Include cache status fields"
//	@Success	200				{object}	map[string]any
//	@Router		/discovery/resources [get]
func (h *Handler) GetResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	showDetails, _ := strconv.ParseBool(q.Get("show_details"))

	result, err := h.engine.ListResources(q.Get("filter"), q.Get("category"), showDetails)
	if err != nil {
		h.writeError(w, "get resources", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"data":           result.Resources,
		"total_count":    result.TotalCount,
		"filtered_count": result.FilteredCount,
		"suggestions":    result.Suggestions,
	})
}

// GetModels handles GET /discovery/models.
//
//	@Summary	List models filtered by schema, medallion level, or resource
//	@Tags		discovery
//	@Produce	json
//	@Param		schema			query		string	false	"Exact schema name"
//	@Param		level			query		string	false	"Medallion level (bronze, silver, gold)"
//	@Param		resource_id		query		string	false	"Resource id or alias (repeatable, max 5)"
//	@Param		limit			query		int		false	"Row limit (default 25, max 200)"
//	@Param		show_details	query		bool	false	"Include per-model detail fields"
//	@Success	200				{object}	map[string]any
//	@Failure	400				{object}	errResponse
//	@Router		/discovery/models [get]
func (h *Handler) GetModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	showDetails, _ := strconv.ParseBool(q.Get("show_details"))

	result, err := h.engine.ListModels(r.Context(), query.ModelsParams{
		Schema:      q.Get("schema"),
		Level:       q.Get("level"),
		ResourceIDs: resourceIDsParam(r),
		Limit:       limit,
		ShowDetails: showDetails,
	})
	if err != nil {
		h.writeError(w, "get models", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"data":             result.Models,
		"grouped":          result.Grouped,
		"count":            result.Count,
		"truncated":        result.Truncated,
		"failed_resources": result.FailedResources,
	})
}

// GetModelDetails handles GET /discovery/models/*. The wildcard is either a
// model unique id (model.<project>.<name>) or an FQN (database.schema.table).
//
//	@Summary	Get one model by unique id or fully qualified name
//	@Tags		discovery
//	@Produce	json
//	@Param		identifier		path		string	true	"Unique id or database.schema.table"
//	@Param		resource_id		query		string	false	"Resource id or alias (repeatable, max 5)"
//	@Param		show_details	query		bool	false	"Include lineage, code, and catalog fields"
//	@Success	200				{object}	map[string]any
//	@Failure	404				{object}	errResponse
//	@Router		/discovery/models/{identifier} [get]
func (h *Handler) GetModelDetails(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(identifier); err == nil {
		identifier = decoded
	}
	if identifier == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("model identifier is required"))
		return
	}
	showDetails, _ := strconv.ParseBool(r.URL.Query().Get("show_details"))

	params := query.ModelParams{
		ResourceIDs: resourceIDsParam(r),
		ShowDetails: showDetails,
	}
	if strings.HasPrefix(identifier, "model.") {
		params.UniqueID = identifier
	} else {
		params.FQN = identifier
	}

	result, err := h.engine.GetModel(r.Context(), params)
	if err != nil {
		h.writeError(w, "get model details", err, result.Matches)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    result.Model,
	})
}

// GetDescription handles GET /discovery/descriptions/{doc_name}.
//
//	@Summary	Get a documentation block by name
//	@Tags		discovery
//	@Produce	json
//	@Param		doc_name	path		string	true	"Documentation block name"
//	@Param		resource_id	query		string	true	"Resource id or alias (repeatable, max 5)"
//	@Success	200			{object}	map[string]any
//	@Failure	404			{object}	errResponse
//	@Router		/discovery/descriptions/{doc_name} [get]
func (h *Handler) GetDescription(w http.ResponseWriter, r *http.Request) {
	docName := chi.URLParam(r, "doc_name")

	result, err := h.engine.GetDescription(r.Context(), docName, resourceIDsParam(r))
	if err != nil {
		h.writeError(w, "get description", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    result.Docs,
		"count":   result.Count,
		"missing": result.Missing,
	})
}

// RefreshCache handles POST /cache/refresh.
//
//	@Summary	Re-discover resources and refresh their artifact caches
//	@Tags		cache
//	@Accept		json
//	@Produce	json
//	@Param		body	body		RefreshRequest	false	"Refresh options"
//	@Success	200		{object}	map[string]any
//	@Failure	400		{object}	errResponse
//	@Router		/cache/refresh [post]
func (h *Handler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}

	result, err := h.engine.Refresh(r.Context(), req.ResourceIDs, req.Force)
	if err != nil {
		h.writeError(w, "refresh cache", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           result.Success,
		"data":              result.Data,
		"message":           result.Message,
		"outcomes":          result.Outcomes,
		"discovery_summary": result.DiscoverySummary,
	})
}

// writeError translates engine errors into structured JSON failures.
// matches, when non-nil, is attached to ambiguity responses.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error, matches []query.ModelMatch) {
	switch {
	case errors.Is(err, apperr.ErrInvalidParameter):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrAmbiguous):
		writeJSON(w, http.StatusConflict, map[string]any{
			"success":          false,
			"error":            err.Error(),
			"multiple_matches": matches,
		})
	case errors.Is(err, apperr.ErrNotCached), errors.Is(err, apperr.ErrRateLimited):
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
