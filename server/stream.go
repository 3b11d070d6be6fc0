package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Project-NEURIA/OpenNeuro/logger"
)

// sseHeaders prepares a response for server-sent events and returns the
// flusher, or nil when the connection cannot stream.
func sseHeaders(w http.ResponseWriter) http.Flusher {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return nil
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher
}

// writeSSE writes one JSON event and flushes it.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event any) {
	data, _ := json.Marshal(event)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// handleMetricsStream streams metrics snapshots as SSE. The stream carries
// no per-connection state; reconnecting is safe.
func (s *Server) handleMetricsStream(w http.ResponseWriter, r *http.Request) {
	flusher := sseHeaders(w)
	if flusher == nil {
		return
	}

	snaps, unsubscribe := s.engine.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			writeSSE(w, flusher, snap)
		}
	}
}

// handleFramesStream streams the frame inspector's recent window as SSE on
// a fixed cadence.
func (s *Server) handleFramesStream(w http.ResponseWriter, r *http.Request) {
	flusher := sseHeaders(w)
	if flusher == nil {
		return
	}

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	writeSSE(w, flusher, s.rt.Recorder().Recent())

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeSSE(w, flusher, s.rt.Recorder().Recent())
		}
	}
}

// frameStreamer is the contract a visual sink satisfies to serve viewers.
type frameStreamer interface {
	Attach(*websocket.Conn) error
	Detach(*websocket.Conn)
}

// upgrader accepts WebSocket viewers from any origin; CORS policy for the
// editor is handled at the HTTP layer.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleVideoStream attaches a WebSocket viewer to a visual sink node.
// Every published frame is pushed as one binary message.
func (s *Server) handleVideoStream(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("node_id")
	inst, ok := s.rt.Graph().Instance(nodeID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:  "NodeNotFound",
			Detail: "node not found: " + nodeID,
		})
		return
	}
	streamer, ok := inst.(frameStreamer)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:  "InvalidArgs",
			Detail: "node is not a visual sink: " + nodeID,
		})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", "node", nodeID, "error", err)
		return
	}
	defer conn.Close()

	if err := streamer.Attach(conn); err != nil {
		return
	}
	defer streamer.Detach(conn)

	// Reads only detect disconnect; viewers send nothing meaningful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
