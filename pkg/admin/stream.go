package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// streamWriteTimeout bounds a single record write to a slow client.
const streamWriteTimeout = 5 * time.Second

// handleStream handles GET /stream. Each new record matching the name and
// type query parameters is sent as one JSON text message. With
// ?replay=true, records already in the store are sent first.
func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	keep, err := recordFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Local test tool; browsers on any origin may watch.
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Clients never send; CloseRead handles control frames and cancels
	// ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	store := a.server.Store()
	feed, cancel := store.Subscribe()
	defer cancel()

	var last uint64
	if r.URL.Query().Get("replay") == "true" {
		for _, rec := range store.Snapshot() {
			if !keep(rec) {
				continue
			}
			if err := a.writeRecord(ctx, conn, rec); err != nil {
				return
			}
			last = rec.Seq
		}
	}

	a.log.Debug("stream opened", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closing:
			_ = conn.Close(websocket.StatusGoingAway, "admin API shutting down")
			return
		case rec, ok := <-feed:
			if !ok {
				return
			}
			// The subscription predates the replay snapshot.
			if rec.Seq <= last || !keep(rec) {
				continue
			}
			if err := a.writeRecord(ctx, conn, rec); err != nil {
				a.log.Debug("stream closed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

func (a *API) writeRecord(ctx context.Context, conn *websocket.Conn, rec statsd.Record) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, rec)
}
