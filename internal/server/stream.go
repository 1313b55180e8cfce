package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/pkgmirror/internal/model"
)

const (
	// wsPingInterval is how often idle WebSocket clients are pinged.
	wsPingInterval = 30 * time.Second

	// wsReadLimit caps inbound frames; clients only send control frames.
	wsReadLimit = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// Update is one published value of one channel, as sent on the streams.
type Update struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// subscription holds one stream client's subscriptions to all three values.
// Each channel starts with the current value, so a client always receives
// the latest state of every channel on connect.
type subscription struct {
	packages   <-chan []model.PackageRecord
	database   <-chan model.DatabaseInfo
	upgradable <-chan model.UpgradableDetails
	cancels    []func()
}

func (s *Server) subscribe() *subscription {
	sub := &subscription{}
	var cancel func()

	sub.packages, cancel = s.state.Packages().Subscribe()
	sub.cancels = append(sub.cancels, cancel)
	sub.database, cancel = s.state.DatabaseInfo().Subscribe()
	sub.cancels = append(sub.cancels, cancel)
	sub.upgradable, cancel = s.state.Upgradable().Subscribe()
	sub.cancels = append(sub.cancels, cancel)

	return sub
}

func (sub *subscription) close() {
	for _, cancel := range sub.cancels {
		cancel()
	}
}

type wakeup int

const (
	wakeUpdate wakeup = iota
	wakeTick
	wakeDone
)

// wait blocks until a value is published, tick fires, or the stream should
// end because ctx is done or the state was closed. A nil tick never fires.
func (sub *subscription) wait(ctx context.Context, tick <-chan time.Time) (Update, wakeup) {
	select {
	case v, ok := <-sub.packages:
		if !ok {
			return Update{}, wakeDone
		}
		return Update{Channel: ChannelPackages, Data: v}, wakeUpdate
	case v, ok := <-sub.database:
		if !ok {
			return Update{}, wakeDone
		}
		return Update{Channel: ChannelDatabase, Data: v}, wakeUpdate
	case v, ok := <-sub.upgradable:
		if !ok {
			return Update{}, wakeDone
		}
		return Update{Channel: ChannelUpgradable, Data: v}, wakeUpdate
	case <-tick:
		return Update{}, wakeTick
	case <-ctx.Done():
		// request context is derived from server context via BaseContext,
		// so this fires on both client disconnect AND server shutdown
		return Update{}, wakeDone
	}
}

// handleSSE streams value updates via Server-Sent Events, using the channel
// name as the event name.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked write would prevent the
// handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(event string, data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub := s.subscribe()
	defer sub.close()

	for {
		u, wake := sub.wait(r.Context(), nil)
		if wake == wakeDone {
			return
		}
		data, err := json.Marshal(u.Data)
		if err != nil {
			s.logger.Error("failed to encode sse event", "channel", u.Channel, "error", err)
			continue
		}
		if err := writeAndFlush(u.Channel, data); err != nil {
			return
		}
	}
}

// handleWebSocket streams value updates as [Update] frames over a
// WebSocket, pinging idle clients.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the read loop handles control frames and notices client close
	conn.SetReadLimit(wsReadLimit)
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("websocket client connected", "remote_addr", r.RemoteAddr)

	sub := s.subscribe()
	defer sub.close()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		u, wake := sub.wait(ctx, ticker.C)
		switch wake {
		case wakeDone:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		case wakeTick:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(sseWriteTimeout)); err != nil {
				return
			}
		case wakeUpdate:
			_ = conn.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
			if err := conn.WriteJSON(u); err != nil {
				s.logger.Debug("websocket write failed", "channel", u.Channel, "error", err)
				return
			}
		}
	}
}
