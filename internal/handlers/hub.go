// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cardtable/uno-service/internal/game"
)

// writeTimeout bounds each feed write so one dead subscriber cannot stall
// the rest of the channel.
const writeTimeout = 5 * time.Second

// FeedMessage is the JSON frame sent to feed subscribers: one frame per
// event, then a state frame with the rendered roster.
type FeedMessage struct {
	Type   string            `json:"type"`
	Event  *game.Event       `json:"event,omitempty"`
	State  *game.PublicState `json:"state,omitempty"`
	Roster string            `json:"roster,omitempty"`
}

type subscriber struct {
	conn    *websocket.Conn
	channel string
}

// Hub tracks feed subscribers per channel and fans command results out to
// them. It holds its own lock only; it never touches session state.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
	log  *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
		log:  log,
	}
}

// Subscribe registers a connection for a channel's feed.
func (h *Hub) Subscribe(channel string, conn *websocket.Conn) *subscriber {
	sub := &subscriber{conn: conn, channel: channel}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*subscriber]struct{})
	}
	h.subs[channel][sub] = struct{}{}
	return sub
}

// Unsubscribe removes a connection from its channel's feed.
func (h *Hub) Unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.channel]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.channel)
		}
	}
}

// Broadcast sends a command result to every subscriber of its channel: each
// event as its own frame, then one state frame.
func (h *Hub) Broadcast(res *game.Result) {
	channel := res.Public.ChannelKey
	frames := make([][]byte, 0, len(res.Events)+1)
	for i := range res.Events {
		frames = append(frames, h.encode(FeedMessage{Type: "event", Event: &res.Events[i]}))
	}
	state := res.Public
	frames = append(frames, h.encode(FeedMessage{
		Type:   "state",
		State:  &state,
		Roster: state.Roster(),
	}))

	for _, sub := range h.snapshotSubs(channel) {
		for _, frame := range frames {
			if frame == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := sub.conn.Write(ctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				h.log.WithError(err).Debug("dropping dead feed subscriber")
				h.Unsubscribe(sub)
				sub.conn.Close(websocket.StatusGoingAway, "write failed")
				break
			}
		}
	}
}

// SendState pushes the current state frame to a single connection, used for
// the initial snapshot on subscribe.
func (h *Hub) SendState(ctx context.Context, conn *websocket.Conn, ps game.PublicState) error {
	frame := h.encode(FeedMessage{Type: "state", State: &ps, Roster: ps.Roster()})
	if frame == nil {
		return nil
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, frame)
}

func (h *Hub) snapshotSubs(channel string) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[channel]
	out := make([]*subscriber, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

func (h *Hub) encode(msg FeedMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal feed message")
		return nil
	}
	return data
}
