// internal/game/events.go
package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType is an enum-like type for the public event feed.
type EventType string

const (
	EventSessionCreated   EventType = "session_created"
	EventPlayerJoined     EventType = "player_joined"
	EventPlayerLeft       EventType = "player_left"
	EventSessionCancelled EventType = "session_cancelled"
	EventGameStarted      EventType = "game_started"
	EventCardPlayed       EventType = "card_played"
	EventCardDrawn        EventType = "card_drawn"
	EventPlayerEliminated EventType = "player_eliminated"
	EventCallOut          EventType = "call_out"
	EventGameWon          EventType = "game_won"
	EventSessionReset     EventType = "session_reset"
)

// Event is one public thing that happened in a session. Message is a plain
// human-readable line ("alice played a Red Skip") that the adapter renders
// verbatim or decorates; the core never produces platform markup.
type Event struct {
	Type       EventType `json:"type"`
	SessionID  uuid.UUID `json:"session_id"`
	ChannelKey string    `json:"channel_key"`
	ActorID    string    `json:"actor_id,omitempty"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

// PlayerSummary is the public view of one session member.
type PlayerSummary struct {
	ID       string `json:"id"`
	HandSize int    `json:"hand_size"`
	IsHost   bool   `json:"is_host"`
	// Uno marks a player down to their last card.
	Uno bool `json:"uno"`
}

// PublicState is a lock-free snapshot of everything spectators may see.
// Rendering happens on this snapshot after the session lock is released.
type PublicState struct {
	SessionID       uuid.UUID       `json:"session_id"`
	ChannelKey      string          `json:"channel_key"`
	HostID          string          `json:"host_id"`
	Started         bool            `json:"started"`
	Finished        bool            `json:"finished"`
	WinnerID        string          `json:"winner_id,omitempty"`
	TopCard         Card            `json:"top_card"`
	TopCardText     string          `json:"top_card_text"`
	CurrentPlayerID string          `json:"current_player_id,omitempty"`
	Reversed        bool            `json:"reversed"`
	PendingDraw     int             `json:"pending_draw"`
	Players         []PlayerSummary `json:"players"`
}

// Roster renders one line per player with a host marker, card counts and the
// "UNO!" flag: plain text for the adapter to decorate.
func (ps PublicState) Roster() string {
	var b strings.Builder
	for _, p := range ps.Players {
		marker := "player"
		if p.IsHost {
			marker = "host"
		}
		if p.Uno {
			fmt.Fprintf(&b, "[%s] %s - UNO!\n", marker, p.ID)
		} else {
			fmt.Fprintf(&b, "[%s] %s - %d cards\n", marker, p.ID, p.HandSize)
		}
	}
	return b.String()
}

// Result is what every accepted command hands back to the adapter: the
// events it produced, the resulting public state, and the acting player's
// private hand view.
type Result struct {
	Events []Event     `json:"events"`
	Public PublicState `json:"public"`

	// Hand is the acting player's hand after the command. Nil when the
	// actor no longer holds a hand (eliminated, left, or lobby-phase ops).
	Hand []Card `json:"hand,omitempty"`

	// Drawn lists cards the actor received from this command, for private
	// messaging ("You drew a Blue 7").
	Drawn []Card `json:"drawn,omitempty"`

	// PendingWild is set when a wild play was suspended awaiting a color
	// choice; nothing else was mutated.
	PendingWild bool `json:"pending_wild,omitempty"`
}
