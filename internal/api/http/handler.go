package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coachgrid/tabledit/internal/observability"
	"github.com/coachgrid/tabledit/internal/schema"
	"github.com/coachgrid/tabledit/internal/session"
	"github.com/coachgrid/tabledit/pkg/types"
)

// Handler serves the session API.
type Handler struct {
	sessions *session.Manager
	registry *schema.Registry
	stats    *observability.EditStats
	gatherer prometheus.Gatherer
}

// NewHandler creates the API handler. stats and gatherer may be nil.
func NewHandler(sessions *session.Manager, registry *schema.Registry, stats *observability.EditStats, gatherer prometheus.Gatherer) *Handler {
	return &Handler{sessions: sessions, registry: registry, stats: stats, gatherer: gatherer}
}

// Routes returns the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RecoveryMiddleware, RequestIDMiddleware, LoggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/tables", h.listTables)
		r.Route("/tables/{table}", func(r chi.Router) {
			r.Get("/", h.getTable)
			r.Post("/edit-sessions", h.openEdit)
			r.Post("/create-sessions", h.openCreate)
			r.Get("/snapshots", h.listSnapshots)
			r.Post("/snapshots", h.createSnapshot)
			r.Get("/stats", h.tableStats)
		})
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.closeSession)
			r.Put("/cells", h.updateCell)
			r.Post("/paste", h.paste)
			r.Post("/focus", h.focus)
			r.Delete("/focus", h.blur)
			r.Post("/discard", h.discard)
			r.Post("/save", h.save)
			r.Post("/refresh", h.refresh)
			r.Post("/import/{snapshot}", h.importSnapshot)
		})
	})
	return r
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tables": h.registry.Names()})
}

func (h *Handler) getTable(w http.ResponseWriter, r *http.Request) {
	def, err := h.registry.Get(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *Handler) openEdit(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.OpenEdit(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) openCreate(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.OpenCreate(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	ids, err := h.sessions.Snapshots(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"snapshots": ids})
}

// SnapshotResponse describes a stored snapshot.
type SnapshotResponse struct {
	ID        string `json:"id"`
	Table     string `json:"table"`
	Rows      int    `json:"rows"`
	CreatedAt int64  `json:"created_at"`
}

func (h *Handler) createSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Snapshot(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SnapshotResponse{
		ID:        snap.ID,
		Table:     snap.Table,
		Rows:      len(snap.Rows),
		CreatedAt: snap.CreatedAt,
	})
}

func (h *Handler) tableStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeJSON(w, http.StatusOK, map[string]any{"columns": []observability.ColumnStats{}})
		return
	}
	n := 10
	if v := r.URL.Query().Get("top"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, r, "top must be a positive integer")
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": h.stats.Top(chi.URLParam(r, "table"), n)})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, http.StatusOK)
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CellRequest is the body of PUT /cells.
type CellRequest struct {
	RowID    string  `json:"row_id"`
	ColumnID string  `json:"column_id"`
	Value    *string `json:"value"`
}

func (h *Handler) updateCell(w http.ResponseWriter, r *http.Request) {
	var req CellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if req.RowID == "" || req.ColumnID == "" || req.Value == nil {
		writeBadRequest(w, r, "row_id, column_id and value are required")
		return
	}
	res, err := h.sessions.UpdateCell(chi.URLParam(r, "id"), req.RowID, req.ColumnID, *req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondWith(w, r, map[string]any{"cell": res})
}

// PasteRequest is the body of POST /paste. Without row and column the
// paste is anchored at the active cell.
type PasteRequest struct {
	Text   string `json:"text"`
	Row    *int   `json:"row,omitempty"`
	Column *int   `json:"column,omitempty"`
}

func (h *Handler) paste(w http.ResponseWriter, r *http.Request) {
	var req PasteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	var at *types.GridPos
	switch {
	case req.Row != nil && req.Column != nil:
		at = &types.GridPos{Row: *req.Row, Column: *req.Column}
	case req.Row != nil || req.Column != nil:
		writeBadRequest(w, r, "row and column must be given together")
		return
	}
	res, err := h.sessions.Paste(chi.URLParam(r, "id"), req.Text, at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondWith(w, r, map[string]any{"paste": res})
}

func (h *Handler) focus(w http.ResponseWriter, r *http.Request) {
	var ref types.CellRef
	if err := decodeJSON(r, &ref); err != nil {
		writeBadRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if err := h.sessions.Focus(chi.URLParam(r, "id"), ref); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK)
}

func (h *Handler) blur(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Blur(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK)
}

func (h *Handler) discard(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Discard(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Save(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondWith(w, r, map[string]any{"save": res})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Refresh(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK)
}

func (h *Handler) importSnapshot(w http.ResponseWriter, r *http.Request) {
	n, err := h.sessions.Import(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "snapshot"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondWith(w, r, map[string]any{"imported": n})
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request, status int) {
	v, err := h.sessions.View(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

// respondWith writes extra fields next to the session view.
func (h *Handler) respondWith(w http.ResponseWriter, r *http.Request, extra map[string]any) {
	v, err := h.sessions.View(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	extra["session"] = v
	writeJSON(w, http.StatusOK, extra)
}
