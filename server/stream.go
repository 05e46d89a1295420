// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/bvk/unitbot/api"
	"github.com/gorilla/websocket"
	"github.com/visvasity/topic"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// serveEvents streams batch events and snapshots to a websocket client. An
// optional "batch" query parameter, a batch name or id, limits the stream to
// a single batch.
func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	var batchID string
	if v := r.URL.Query().Get("batch"); v != "" {
		b, err := s.store.GetBatch(r.Context(), v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		batchID = b.ID
	}

	receiver, err := topic.Subscribe(s.streamTopic, 0, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer receiver.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("could not upgrade to websocket", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.lifeCtx)
	defer cancel()
	stopf := context.AfterFunc(ctx, receiver.Close)
	defer stopf()

	// Clients never send messages; reads only detect the close.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("CAUGHT PANIC", "panic", r)
				slog.Error(string(debug.Stack()))
				panic(r)
			}
		}()
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if batchID != "" {
		if m, ok := s.monitors.Load(batchID); ok {
			msg := &api.StreamMessage{Snapshot: toAPISnapshot(m.ctl.Snapshot(), m.accountNames)}
			if err := s.writeStreamMessage(conn, msg); err != nil {
				return
			}
		}
	}

	for ctx.Err() == nil {
		msg, err := receiver.Receive()
		if err != nil {
			return
		}
		if batchID != "" && streamBatchID(msg) != batchID {
			continue
		}
		if err := s.writeStreamMessage(conn, msg); err != nil {
			slog.Debug("websocket client is gone", "remote", r.RemoteAddr, "err", err)
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func (s *Server) writeStreamMessage(conn *websocket.Conn, msg *api.StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(msg)
}

func streamBatchID(msg *api.StreamMessage) string {
	if msg.Event != nil {
		return msg.Event.BatchID
	}
	if msg.Snapshot != nil {
		return msg.Snapshot.BatchID
	}
	return ""
}
