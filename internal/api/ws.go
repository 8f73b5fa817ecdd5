package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fleetroute/internal/model"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

// SolveWSHandler streams solve progress over a WebSocket. The client sends
// nothing; the read loop exists only to observe close frames and pongs.
func (s *Server) SolveWSHandler(w http.ResponseWriter, r *http.Request, tenant, id string) {
	solve, err := s.Store.GetSolve(r.Context(), tenant, id)
	if err != nil {
		writeStoreProblem(w, r, err, "Solve")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeEvent := func(evt SSEEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		out := map[string]any{"type": evt.Type}
		for k, v := range evt.Data {
			out[k] = v
		}
		return conn.WriteJSON(out)
	}

	if solve.Status == model.SolveCompleted || solve.Status == model.SolveFailed {
		_ = writeEvent(SSEEvent{Type: solve.Status, Data: map[string]any{
			"solveId":  id,
			"distance": solve.Distance,
			"error":    solve.Error,
		}})
		return
	}

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, open := <-ch:
			if !open {
				return
			}
			if err := writeEvent(evt); err != nil {
				log.Printf("solve %s: ws write: %v", id, err)
				return
			}
			if evt.Type == "completed" || evt.Type == "failed" {
				return
			}
		}
	}
}
