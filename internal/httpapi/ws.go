package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsControlFrame struct {
	Type string `json:"type"`
	Cols uint   `json:"cols"`
	Rows uint   `json:"rows"`
}

// handleWebsocket upgrades to a bidirectional TTY socket (spec §6
// /ws/runs/:id): text frames are parsed as JSON control messages
// (currently only {type:"resize"}); every other frame is raw bytes to
// stdin. Outbound frames are raw binary TTY bytes, fed from the same
// per-Run listener fan-out the SSE log endpoint uses.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	_, ch, remove, err := s.orch.Listen(runID, 0)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	defer remove()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage {
				var ctrl wsControlFrame
				if json.Unmarshal(data, &ctrl) == nil && ctrl.Type == "resize" {
					s.orch.Resize(r.Context(), runID, ctrl.Cols, ctrl.Rows)
					continue
				}
			}
			_ = s.orch.Input(runID, data)
		}
	}()

	for {
		select {
		case chunk, open := <-ch:
			if !open {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
