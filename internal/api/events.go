package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/snarg/agrivoice/internal/bus"
	"github.com/snarg/agrivoice/internal/metrics"
)

type EventsHandler struct {
	bus *bus.Bus
}

func NewEventsHandler(b *bus.Bus) *EventsHandler {
	return &EventsHandler{bus: b}
}

// StreamEvents opens an SSE connection over the task event bus. Clients
// that reconnect with Last-Event-ID get the ring-buffered backlog first.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var afterSeq int64
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		afterSeq, _ = strconv.ParseInt(last, 10, 64)
	}

	id, ch, replay := h.bus.Subscribe(afterSeq)
	defer h.bus.Unsubscribe(id)

	for _, ev := range replay {
		writeEvent(w, ev)
	}
	if len(replay) > 0 {
		flusher.Flush()
	}

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	log := hlog.FromRequest(r)
	log.Info().Int64("after_seq", afterSeq).Msg("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
			metrics.SSEEventsPublishedTotal.Inc()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev bus.Event) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "id: %d\nevent: task\ndata: %s\n\n", ev.Seq, data)
}
