package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
)

// streamWriter serializes all outbound events for one media stream. A
// response's media and mark frames are written back to back under one lock
// hold, so a keep-alive from a later turn can never interleave with them.
type streamWriter struct {
	conn      *websocket.Conn
	ctx       context.Context
	streamSID string

	mu sync.Mutex
}

func newStreamWriter(ctx context.Context, conn *websocket.Conn, streamSID string) *streamWriter {
	return &streamWriter{conn: conn, ctx: ctx, streamSID: streamSID}
}

// SendMedia sends the full response audio as a single outbound media event.
func (w *streamWriter) SendMedia(payload []byte) error {
	return w.write(Event{
		Event:     EventMedia,
		StreamSID: w.streamSID,
		Media: &MediaPayload{
			Track:   outboundTrack,
			Payload: base64.StdEncoding.EncodeToString(payload),
		},
	})
}

// SendMark sends a named playback marker.
func (w *streamWriter) SendMark(name string) error {
	return w.write(Event{
		Event:     EventMark,
		StreamSID: w.streamSID,
		Mark:      &MarkPayload{Name: name},
	})
}

// SendKeepAlive sends a zero-payload media event. The telephony provider
// treats it as silence; its only job is keeping the connection busy.
func (w *streamWriter) SendKeepAlive() error {
	return w.write(Event{
		Event:     EventMedia,
		StreamSID: w.streamSID,
		Media:     &MediaPayload{Payload: ""},
	})
}

func (w *streamWriter) write(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("telephony: marshal %s event: %w", ev.Event, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.Write(w.ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("telephony: write %s event: %w", ev.Event, err)
	}
	return nil
}
