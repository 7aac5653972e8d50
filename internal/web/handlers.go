package web

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/lookout/internal/errors"
	"github.com/hpungsan/lookout/internal/status"
	"github.com/hpungsan/lookout/internal/store"
	"github.com/hpungsan/lookout/internal/stream"
)

// Handlers contains the HTTP route handlers for the dashboard.
type Handlers struct {
	model       *status.Model
	broadcaster *stream.Broadcaster
	static      *staticFiles
	readTimeout time.Duration
	logger      *slog.Logger

	pubMu sync.Mutex // orders snapshot+publish pairs
}

// HandleStream handles GET /stream. The first frame is the current snapshot;
// after that the client sees pushed snapshots and keep-alive comments until it
// disconnects or the server shuts down.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sub, err := h.broadcaster.Subscribe(func() ([]byte, error) {
		return json.Marshal(h.model.Snapshot(ctx))
	})
	if err != nil {
		if stderrors.Is(err, stream.ErrClosed) {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		renderError(w, h.logger, err)
		return
	}
	defer h.broadcaster.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case ev := <-sub.Events():
			if _, err := ev.WriteTo(w); err != nil {
				h.logger.Debug("stream write failed", "subscriber", sub.ID(), "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				h.logger.Debug("stream flush failed", "subscriber", sub.ID(), "error", err)
				return
			}
		}
	}
}

// HandleGetStatus handles GET /api/status.
func (h *Handlers) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.model.Snapshot(r.Context()))
}

// HandlePostStatus handles POST /api/status: shallow merge into the status.
func (h *Handlers) HandlePostStatus(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, h.readTimeout)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}

	if err := h.model.ApplyStatusUpdate(r.Context(), body); err != nil {
		renderError(w, h.logger, err)
		return
	}

	renderJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandlePostTasks handles POST /api/tasks: replace the whole task collection.
func (h *Handlers) HandlePostTasks(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, h.readTimeout)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}

	tasks, err := store.ParseTasks(body)
	if err != nil {
		renderError(w, h.logger, errors.NewMalformedInput(err.Error()))
		return
	}

	if err := h.model.ReplaceTasks(r.Context(), tasks); err != nil {
		renderError(w, h.logger, err)
		return
	}

	renderJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandlePatchRequest handles PATCH /api/requests/{id}.
func (h *Handlers) HandlePatchRequest(w http.ResponseWriter, r *http.Request) {
	id, err := status.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, h.logger, err)
		return
	}

	body, err := readBody(w, r, h.readTimeout)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}

	update, err := status.ParseRequestUpdate(body)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}

	rec, err := h.model.ApplyRequestUpdate(r.Context(), id, update)
	if err != nil {
		renderError(w, h.logger, err)
		return
	}

	renderJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"request": rec,
	})
}

// publish pushes the current snapshot to every subscriber. Snapshots are
// taken and published under pubMu, so frames leave in the order they were
// taken and the last one reflects every mutation that completed before it.
func (h *Handlers) publish() {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	if h.broadcaster.Len() == 0 {
		return
	}
	data, err := json.Marshal(h.model.Snapshot(context.Background()))
	if err != nil {
		h.logger.Error("snapshot encode failed", "error", err)
		return
	}
	h.broadcaster.Publish(data)
}
