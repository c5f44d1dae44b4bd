package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"kidsmoney/internal/notify"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
)

type streamHello struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Revision int64  `json:"revision"`
}

type streamFrame struct {
	Type         string `json:"type"`
	notify.Notification
}

// handleStream upgrades to a websocket and forwards the caller's
// notifications until either side hangs up. Clients only need to read; any
// text they send is ignored.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	user := identityFrom(r)
	st, err := s.game.State(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sub, err := s.game.Subscribe(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("stream upgrade failed", "user", user.UserID, "err", err)
		return
	}
	defer conn.Close()
	s.log.Info("stream opened", "user", user.UserID, "subscribers", s.game.Hub().Subscribers())

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(streamHello{Type: "hello", UserID: user.UserID, Revision: st.Revision}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writeErr := make(chan error, 1)
	go func() {
		ping := time.NewTicker(streamPingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case n, ok := <-sub.C:
				if !ok {
					writeErr <- nil
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteJSON(streamFrame{Type: "notification", Notification: n}); err != nil {
					writeErr <- err
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	}

	cancel()
	sub.Close()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
	s.log.Info("stream closed", "user", user.UserID)
}
