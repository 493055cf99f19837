// internal/game/game.go
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxPlayers is the session capacity, host included.
	MaxPlayers = 4
	// OpeningHandSize is how many cards each player is dealt on start.
	OpeningHandSize = 7
	// CallOutPenalty is drawn by a one-card player who loses the call-out race.
	CallOutPenalty = 2
)

// Session is one lobby-phase or in-progress game scoped to a channel. All
// mutable fields are guarded by Mu; commands against the same session
// serialize, different sessions are fully independent. Finished state and
// the activity timestamp are atomics so the registry can test staleness
// without taking the session lock.
type Session struct {
	ID         uuid.UUID
	ChannelKey string
	HostID     string

	Mu sync.Mutex

	players            []*Player
	started            bool
	winnerID           string
	currentPlayerIndex int
	reversed           bool
	topCard            Card
	pendingDraw        int
	pendingWild        *pendingWild

	rng *rand.Rand

	finished     atomic.Bool
	lastActivity atomic.Int64
}

// pendingWild is the suspended sub-state of a wild play awaiting its color
// choice. Nothing else is mutated while it is pending, and it is cancellable
// without consuming the turn.
type pendingWild struct {
	playerID  string
	handIndex int
	card      Card
}

// NewSession creates a lobby-phase session with the host as sole member.
func NewSession(hostID, channelKey string) *Session {
	s := &Session{
		ID:         uuid.New(),
		ChannelKey: channelKey,
		HostID:     hostID,
		players:    []*Player{newPlayer(hostID)},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.touch()
	return s
}

// touch records an accepted command for inactivity eviction.
func (s *Session) touch() { s.lastActivity.Store(time.Now().UnixNano()) }

// Finished reports whether the session has reached its terminal state.
func (s *Session) Finished() bool { return s.finished.Load() }

// Stale reports whether no command has been accepted for longer than ttl.
func (s *Session) Stale(ttl time.Duration) bool {
	last := time.Unix(0, s.lastActivity.Load())
	return time.Since(last) > ttl
}

// findPlayer returns the member with the given id, or nil. Lock held.
func (s *Session) findPlayer(userID string) (*Player, int) {
	for i, p := range s.players {
		if p.ID == userID {
			return p, i
		}
	}
	return nil, -1
}

// isMember reports membership without requiring started state. Lock held.
func (s *Session) isMember(userID string) bool {
	p, _ := s.findPlayer(userID)
	return p != nil
}

// IsMember is the locked wrapper used by the registry's index repair.
func (s *Session) IsMember(userID string) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.isMember(userID)
}

// event builds a feed entry for this session. Lock held.
func (s *Session) event(t EventType, actorID, msg string) Event {
	return Event{
		Type:       t,
		SessionID:  s.ID,
		ChannelKey: s.ChannelKey,
		ActorID:    actorID,
		Message:    msg,
		At:         time.Now(),
	}
}

// snapshot copies the public state for rendering after the lock is released.
// Lock held.
func (s *Session) snapshot() PublicState {
	ps := PublicState{
		SessionID:   s.ID,
		ChannelKey:  s.ChannelKey,
		HostID:      s.HostID,
		Started:     s.started,
		Finished:    s.finished.Load(),
		WinnerID:    s.winnerID,
		TopCard:     s.topCard,
		TopCardText: s.topCard.String(),
		Reversed:    s.reversed,
		PendingDraw: s.pendingDraw,
	}
	for _, p := range s.players {
		ps.Players = append(ps.Players, PlayerSummary{
			ID:       p.ID,
			HandSize: p.HandSize(),
			IsHost:   p.ID == s.HostID,
			Uno:      p.HandSize() == 1,
		})
	}
	if s.started && !ps.Finished && len(s.players) > 0 {
		ps.CurrentPlayerID = s.players[s.currentPlayerIndex].ID
	}
	return ps
}

// Snapshot returns the public state under the session lock.
func (s *Session) Snapshot() PublicState {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.snapshot()
}

// HandOf returns the private hand view for one member.
func (s *Session) HandOf(userID string) ([]Card, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	p, _ := s.findPlayer(userID)
	if p == nil {
		return nil, ErrNotAMember
	}
	return p.Hand(), nil
}

// LegalPlayIndices recomputes the playable indices for one member against
// the current top card. Never cached: the hand may have changed since the
// last render.
func (s *Session) LegalPlayIndices(userID string) ([]int, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	p, _ := s.findPlayer(userID)
	if p == nil {
		return nil, ErrNotAMember
	}
	if !s.started {
		return nil, ErrNotStarted
	}
	return p.LegalPlays(s.topCard), nil
}

// --- lobby-phase transitions, driven by the Registry ---

func (s *Session) join(userID string) (*Result, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.finished.Load() {
		return nil, ErrNoSuchSession
	}
	if s.started {
		return nil, ErrAlreadyStarted
	}
	if userID == s.HostID {
		return nil, ErrIsHost
	}
	if s.isMember(userID) {
		return nil, ErrAlreadyJoined
	}
	if len(s.players) >= MaxPlayers {
		return nil, ErrFull
	}
	s.players = append(s.players, newPlayer(userID))
	s.touch()
	return &Result{
		Events: []Event{s.event(EventPlayerJoined, userID, fmt.Sprintf("%s joined the game", userID))},
		Public: s.snapshot(),
	}, nil
}

// leave removes a non-host member before start. The host cancels instead.
func (s *Session) leave(userID string) (*Result, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.finished.Load() {
		return nil, ErrNoSuchSession
	}
	if s.started {
		return nil, ErrAlreadyStarted
	}
	if userID == s.HostID {
		return nil, ErrIsHost
	}
	_, idx := s.findPlayer(userID)
	if idx < 0 {
		return nil, ErrNotJoined
	}
	s.players = append(s.players[:idx], s.players[idx+1:]...)
	s.touch()
	return &Result{
		Events: []Event{s.event(EventPlayerLeft, userID, fmt.Sprintf("%s left the game", userID))},
		Public: s.snapshot(),
	}, nil
}

// start deals opening hands, draws a plain-numeral top card and fixes the
// turn order to the join order.
func (s *Session) start(requesterID string) (*Result, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.finished.Load() {
		return nil, ErrNoSuchSession
	}
	if requesterID != s.HostID {
		return nil, ErrNotHost
	}
	if s.started {
		return nil, ErrAlreadyStarted
	}
	if len(s.players) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	for _, p := range s.players {
		p.Draw(s.rng, OpeningHandSize)
	}

	// The opening card must be a plain numeral; redraw effect and wild cards.
	s.topCard = NewRandomCard(s.rng)
	for !s.topCard.HasRank() {
		s.topCard = NewRandomCard(s.rng)
	}

	s.started = true
	s.currentPlayerIndex = 0
	s.touch()
	first := s.players[0].ID
	return &Result{
		Events: []Event{s.event(EventGameStarted, requesterID,
			fmt.Sprintf("the game has started, %s goes first on a %s", first, s.topCard))},
		Public: s.snapshot(),
	}, nil
}

// --- in-game commands ---

// guardInGame runs the shared preamble for in-game commands. Lock held.
func (s *Session) guardInGame(userID string) (*Player, error) {
	if s.finished.Load() {
		return nil, ErrGameOver
	}
	if !s.started {
		return nil, ErrNotStarted
	}
	p, _ := s.findPlayer(userID)
	if p == nil {
		return nil, ErrNotAMember
	}
	return p, nil
}

// ApplyPlay validates and applies one card play. A wild without a color is
// suspended into the pending-wild sub-state rather than applied.
func (s *Session) ApplyPlay(userID string, card Card, handIndex int) (*Result, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	p, err := s.guardInGame(userID)
	if err != nil {
		return nil, err
	}
	if s.players[s.currentPlayerIndex] != p {
		return nil, ErrNotYourTurn
	}

	// A fresh play attempt supersedes any color choice still pending.
	if s.pendingWild != nil && s.pendingWild.playerID == userID {
		s.pendingWild = nil
	}

	// Re-validate against the live hand: the render the click came from may
	// be stale.
	held, ok := p.CardAt(handIndex)
	if !ok {
		return nil, ErrNotInHand
	}
	want := card
	if want.IsWild() {
		want.Color = ColorNone
		want.Rank = NoRank
	}
	if held != want {
		return nil, ErrNotInHand
	}
	if !held.CanPlayOn(s.topCard) {
		return nil, ErrIllegalCard
	}

	if held.IsWild() {
		s.pendingWild = &pendingWild{playerID: userID, handIndex: handIndex, card: held}
		s.touch()
		return &Result{
			Public:      s.snapshot(),
			Hand:        p.Hand(),
			PendingWild: true,
		}, nil
	}

	return s.resolvePlay(p, handIndex, held), nil
}

// SelectWildColor completes a suspended wild play with the chosen color.
func (s *Session) SelectWildColor(userID string, color Color) (*Result, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	p, err := s.guardInGame(userID)
	if err != nil {
		return nil, err
	}
	pw := s.pendingWild
	if pw == nil || pw.playerID != userID {
		return nil, ErrNoPendingWild
	}
	if s.players[s.currentPlayerIndex] != p {
		s.pendingWild = nil
		return nil, ErrNotYourTurn
	}
	if color == ColorNone {
		return nil, ErrWildNeedsColor
	}

	// The hand may have shifted since the wild was suspended (a call-out
	// penalty lands mid-turn); the card must still sit at the same index.
	held, ok := p.CardAt(pw.handIndex)
	if !ok || held != pw.card {
		s.pendingWild = nil
		return nil, ErrNotInHand
	}

	s.pendingWild = nil
	return s.resolvePlay(p, pw.handIndex, held.WithColor(color)), nil
}

// CancelWildSelection abandons a pending wild play, returning the player to
// their hand view without consuming the turn.
func (s *Session) CancelWildSelection(userID string) (*Result, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	p, err := s.guardInGame(userID)
	if err != nil {
		return nil, err
	}
	if s.pendingWild == nil || s.pendingWild.playerID != userID {
		return nil, ErrNoPendingWild
	}
	s.pendingWild = nil
	s.touch()
	return &Result{Public: s.snapshot(), Hand: p.Hand()}, nil
}

// resolvePlay removes the card from the hand, makes it the top card, then
// settles the pending draw stack, advances the turn and runs win detection.
// Lock held; the play itself has already been validated.
func (s *Session) resolvePlay(p *Player, handIndex int, played Card) *Result {
	prevTop := s.topCard
	p.RemoveAt(handIndex) // validated by the caller
	s.topCard = played

	res := &Result{}
	res.Events = append(res.Events, s.event(EventCardPlayed, p.ID,
		fmt.Sprintf("%s played a %s", p.ID, played)))

	// Down to one card opens the call-out race window.
	p.canBeCalledOut = p.HandSize() == 1

	// An empty hand wins immediately; no effects propagate past a win.
	if p.HandSize() == 0 {
		s.finish(p.ID, res)
		res.Public = s.snapshot()
		res.Hand = p.Hand()
		s.touch()
		return res
	}

	s.pendingDraw += played.DrawPenalty()

	// Stacked-draw settlement: covering a pending stack with a card that
	// does not continue the chain forces the whole stack onto the player
	// who failed to counter, before the turn pointer moves.
	eliminated := false
	if s.pendingDraw > 0 && prevTop.Stackable() && !played.Stackable() {
		n := s.pendingDraw
		s.pendingDraw = 0
		res.Drawn = p.Draw(s.rng, n)
		p.canBeCalledOut = p.HandSize() == 1
		res.Events = append(res.Events, s.event(EventCardDrawn, p.ID,
			fmt.Sprintf("%s had to pick up %d cards", p.ID, n)))
		eliminated = s.maybeEliminate(p, res)
	}

	if eliminated {
		// Elimination already moved the turn pointer; the played card's
		// effect does not propagate further.
		s.checkWinner(res)
	} else {
		switch played.Effect {
		case EffectReverse:
			s.reversed = !s.reversed
			s.advanceOnce()
		case EffectSkip:
			s.advanceOnce()
			s.advanceOnce()
		default:
			s.advanceOnce()
		}
		s.checkWinner(res)
	}

	res.Public = s.snapshot()
	res.Hand = p.Hand()
	s.touch()
	return res
}

// ApplyDraw draws exactly one card on the acting player's own turn. It does
// not advance the turn: the player keeps the option to play the drawn card,
// and play only moves on through a later legal play.
func (s *Session) ApplyDraw(userID string) (*Result, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	p, err := s.guardInGame(userID)
	if err != nil {
		return nil, err
	}
	if s.players[s.currentPlayerIndex] != p {
		return nil, ErrNotYourTurn
	}
	if s.pendingWild != nil && s.pendingWild.playerID == userID {
		s.pendingWild = nil
	}

	res := &Result{}
	res.Drawn = p.Draw(s.rng, 1)
	p.canBeCalledOut = p.HandSize() == 1
	res.Events = append(res.Events, s.event(EventCardDrawn, userID,
		fmt.Sprintf("%s drew a card", userID)))

	if s.maybeEliminate(p, res) {
		s.checkWinner(res)
	}

	res.Public = s.snapshot()
	res.Hand = p.Hand()
	s.touch()
	return res, nil
}

// CallOut resolves the "UNO!" race against the first still-eligible one-card
// player. The check-and-clear is a single step under the session lock, so
// exactly one of any concurrent callers wins the race.
func (s *Session) CallOut(userID string) (*Result, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if _, err := s.guardInGame(userID); err != nil {
		return nil, err
	}

	var target *Player
	for _, p := range s.players {
		if p.canBeCalledOut {
			target = p
			break
		}
	}
	if target == nil {
		return nil, ErrTooLate
	}
	target.canBeCalledOut = false

	res := &Result{}
	if target.ID == userID {
		res.Events = append(res.Events, s.event(EventCallOut, userID,
			fmt.Sprintf("%s said UNO before anyone else and is safe", userID)))
	} else {
		target.Draw(s.rng, CallOutPenalty)
		res.Events = append(res.Events, s.event(EventCallOut, userID,
			fmt.Sprintf("%s called out %s, who had to pick up %d cards", userID, target.ID, CallOutPenalty)))
		if s.maybeEliminate(target, res) {
			s.checkWinner(res)
		}
	}

	res.Public = s.snapshot()
	if actor, _ := s.findPlayer(userID); actor != nil {
		res.Hand = actor.Hand()
	}
	s.touch()
	return res, nil
}

// LeaveDuringGame removes a member mid-game. If they held the turn, play
// advances to the next player with no effect propagation.
func (s *Session) LeaveDuringGame(userID string) (*Result, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.finished.Load() {
		return nil, ErrGameOver
	}
	if !s.started {
		return nil, ErrNotStarted
	}
	p, idx := s.findPlayer(userID)
	if p == nil {
		return nil, ErrNotAMember
	}

	res := &Result{}
	res.Events = append(res.Events, s.event(EventPlayerLeft, userID,
		fmt.Sprintf("%s left the game", userID)))
	s.removePlayerAt(idx)
	s.checkWinner(res)

	res.Public = s.snapshot()
	s.touch()
	return res, nil
}

// participant checks that a user can issue in-game commands against this
// session: they must be a member and the game must have started.
func (s *Session) participant(userID string) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if !s.isMember(userID) {
		return ErrNotAMember
	}
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// closeOut marks the session finished out-of-band (cancel, admin reset,
// process shutdown) and returns the closing event for the adapter to
// broadcast.
func (s *Session) closeOut(t EventType, actorID, msg string) *Result {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.finished.Store(true)
	return &Result{
		Events: []Event{s.event(t, actorID, msg)},
		Public: s.snapshot(),
	}
}

// --- internals, lock held ---

// advanceOnce moves the turn pointer one position in the current direction.
func (s *Session) advanceOnce() {
	n := len(s.players)
	if n == 0 {
		return
	}
	step := 1
	if s.reversed {
		step = -1
	}
	s.currentPlayerIndex = (s.currentPlayerIndex + step + n) % n
}

// maybeEliminate applies the hand-overflow rule after a draw.
func (s *Session) maybeEliminate(p *Player, res *Result) bool {
	if p.HandSize() < MaxHandSize {
		return false
	}
	_, idx := s.findPlayer(p.ID)
	if idx < 0 {
		return false
	}
	res.Events = append(res.Events, s.event(EventPlayerEliminated, p.ID,
		fmt.Sprintf("%s hit the max cards (%d) and was kicked", p.ID, MaxHandSize)))
	p.discardHand()
	s.removePlayerAt(idx)
	return true
}

// removePlayerAt drops the player at idx and repairs the turn pointer: a
// removed current player hands the turn to the next player in the current
// direction.
func (s *Session) removePlayerAt(idx int) {
	p := s.players[idx]
	if s.pendingWild != nil && s.pendingWild.playerID == p.ID {
		s.pendingWild = nil
	}
	s.players = append(s.players[:idx], s.players[idx+1:]...)
	n := len(s.players)
	if n == 0 {
		s.currentPlayerIndex = 0
		return
	}
	switch {
	case idx < s.currentPlayerIndex:
		s.currentPlayerIndex--
	case idx == s.currentPlayerIndex:
		if s.reversed {
			s.currentPlayerIndex = (idx - 1 + n) % n
		} else if s.currentPlayerIndex >= n {
			s.currentPlayerIndex = 0
		}
	}
}

// checkWinner finishes the session when one player remains or a hand is
// empty. No transition leaves the finished state.
func (s *Session) checkWinner(res *Result) {
	if s.finished.Load() || !s.started {
		return
	}
	if len(s.players) == 1 {
		s.finish(s.players[0].ID, res)
		return
	}
	for _, p := range s.players {
		if p.HandSize() == 0 {
			s.finish(p.ID, res)
			return
		}
	}
}

func (s *Session) finish(winnerID string, res *Result) {
	s.winnerID = winnerID
	s.finished.Store(true)
	res.Events = append(res.Events, s.event(EventGameWon, winnerID,
		fmt.Sprintf("%s has won the game", winnerID)))
}
