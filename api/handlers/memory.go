package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Modern-Method/Ethos/memory"
	"github.com/Modern-Method/Ethos/types"
)

// IngestHandler serves POST /ingest.
type IngestHandler struct {
	Service *memory.Service
	Logger  *zap.Logger
}

type ingestRequest struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := DecodeJSONBody(w, r, &req, h.Logger); err != nil {
		return
	}

	id, err := h.Service.Ingester.Ingest(r.Context(), memory.IngestInput{
		Content: req.Content, Source: req.Source, Metadata: req.Metadata,
	})
	if err != nil {
		WriteError(w, AsTypedError(err), h.Logger)
		return
	}
	WriteSuccess(w, map[string]any{"queued": true, "id": id})
}

// SearchHandler serves POST /search. With ?format=cli the results are
// returned in the CLI wire format (memory.ToCLIResults).
type SearchHandler struct {
	Service *memory.Service
	Logger  *zap.Logger
}

type searchRequest struct {
	Query        string   `json:"query"`
	Limit        int      `json:"limit,omitempty"`
	UseSpreading bool     `json:"use_spreading,omitempty"`
	MinScore     *float64 `json:"min_score,omitempty"`
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := DecodeJSONBody(w, r, &req, h.Logger); err != nil {
		return
	}

	resp, err := h.Service.Retriever.Retrieve(r.Context(), memory.Query{
		Text: req.Query, Limit: req.Limit, UseSpreading: req.UseSpreading, MinScore: req.MinScore,
	})
	if err != nil {
		WriteError(w, AsTypedError(err), h.Logger)
		return
	}
	if r.URL.Query().Get("format") == "cli" {
		WriteSuccess(w, memory.ToCLIResults(resp.Results))
		return
	}
	WriteSuccess(w, resp)
}

// ConsolidateHandler serves POST /consolidate.
type ConsolidateHandler struct {
	Service *memory.Service
	Logger  *zap.Logger
}

func (h *ConsolidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Service.Consolidator.RunCycle(r.Context(), true)
	WriteSuccess(w, report)
}

// GetHandler serves GET /get?id=..., a direct random-access lookup of a
// single memory vector by id for the socket/CLI/HTTP surfaces that need
// one, bypassing retrieval ranking entirely.
type GetHandler struct {
	Service *memory.Service
	Logger  *zap.Logger
}

func (h *GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		WriteErrorMessage(w, types.ErrBadRequest, "id must be a uuid", h.Logger)
		return
	}
	v, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		WriteError(w, AsTypedError(err), h.Logger)
		return
	}
	WriteSuccess(w, map[string]any{
		"id": v.SourceID, "content": v.ContentSnippet,
		"source": v.SourceType, "created_at": v.CreatedAt,
	})
}

// WorkflowHandler serves GET/POST /workflow: GET looks up a session-scoped
// key/value scratch entry, POST upserts one. This is the only surface
// touching WorkflowMemory; it sits outside the episodic/semantic
// consolidation pipeline entirely.
type WorkflowHandler struct {
	Service *memory.Service
	Logger  *zap.Logger
}

type workflowSetRequest struct {
	SessionKey string         `json:"session_key"`
	Key        string         `json:"key"`
	Value      map[string]any `json:"value"`
}

func (h *WorkflowHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessionKey := r.URL.Query().Get("session_key")
		key := r.URL.Query().Get("key")
		if sessionKey == "" || key == "" {
			WriteErrorMessage(w, types.ErrBadRequest, "session_key and key are required", h.Logger)
			return
		}
		wf, err := h.Service.GetWorkflowScratch(r.Context(), sessionKey, key)
		if err != nil {
			WriteError(w, AsTypedError(err), h.Logger)
			return
		}
		WriteSuccess(w, map[string]any{"session_key": wf.SessionKey, "key": wf.Key, "value": map[string]any(wf.Value)})
	case http.MethodPost:
		var req workflowSetRequest
		if err := DecodeJSONBody(w, r, &req, h.Logger); err != nil {
			return
		}
		if req.SessionKey == "" || req.Key == "" {
			WriteErrorMessage(w, types.ErrBadRequest, "session_key and key are required", h.Logger)
			return
		}
		wf, err := h.Service.SetWorkflowScratch(r.Context(), req.SessionKey, req.Key, req.Value)
		if err != nil {
			WriteError(w, AsTypedError(err), h.Logger)
			return
		}
		WriteSuccess(w, map[string]any{"session_key": wf.SessionKey, "key": wf.Key, "value": map[string]any(wf.Value)})
	default:
		WriteErrorMessage(w, types.ErrBadRequest, "method not allowed", h.Logger)
	}
}

// EmbedHandler serves the manual embed_by_id re-fill entry point; not
// named in the HTTP surface's enumerated subset but exposed for parity
// with the socket protocol's `embed` verb.
type EmbedHandler struct {
	Service *memory.Service
	Logger  *zap.Logger
}

type embedRequest struct {
	ID string `json:"id"`
}

func (h *EmbedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := DecodeJSONBody(w, r, &req, h.Logger); err != nil {
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		WriteErrorMessage(w, types.ErrBadRequest, "id must be a uuid", h.Logger)
		return
	}
	embedded, err := h.Service.EmbedByID(r.Context(), id)
	if err != nil {
		WriteError(w, AsTypedError(err), h.Logger)
		return
	}
	WriteSuccess(w, map[string]any{"id": id, "embedded": embedded})
}
