// internal/game/registry.go
package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultIdleTTL is how long a session may go without an accepted command
// before it is treated as abandoned.
const DefaultIdleTTL = 10 * time.Minute

// Registry is the single authority over the set of live sessions. It
// enforces the business rules "one session per channel" and "one session
// per participant, as host or player" under concurrent lobby commands.
//
// The registry mutex guards only the index maps and is never held across a
// full command's processing; session locks nest inside it (registry before
// session, never the reverse).
type Registry struct {
	mu        sync.Mutex
	byChannel map[string]*Session
	byHost    map[string]*Session
	byUser    map[string]*Session

	idleTTL time.Duration
	log     *logrus.Logger
}

// NewRegistry builds an empty registry. A zero idleTTL selects
// DefaultIdleTTL.
func NewRegistry(log *logrus.Logger, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		byChannel: make(map[string]*Session),
		byHost:    make(map[string]*Session),
		byUser:    make(map[string]*Session),
		idleTTL:   idleTTL,
		log:       log,
	}
}

// Evict removes finished and idle sessions. It runs opportunistically at
// the top of every registry operation rather than on a timer: staleness
// only matters at the next meaningful access.
func (r *Registry) Evict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
}

func (r *Registry) evictLocked() {
	for _, s := range r.byChannel {
		if s.Finished() || s.Stale(r.idleTTL) {
			r.removeLocked(s, "evicted")
		}
	}
}

// removeLocked drops a session from every index. Registry lock held.
func (r *Registry) removeLocked(s *Session, why string) {
	if r.byChannel[s.ChannelKey] == s {
		delete(r.byChannel, s.ChannelKey)
	}
	if r.byHost[s.HostID] == s {
		delete(r.byHost, s.HostID)
	}
	for userID, sess := range r.byUser {
		if sess == s {
			delete(r.byUser, userID)
		}
	}
	r.log.WithFields(logrus.Fields{
		"session": s.ID,
		"channel": s.ChannelKey,
		"reason":  why,
	}).Info("session removed")
}

// userBusyLocked reports whether the user is still tied to a live session.
// Entries for users who were eliminated or left mid-game are repaired
// lazily here, since the engine never reaches back into the registry.
func (r *Registry) userBusyLocked(userID string) bool {
	s, ok := r.byUser[userID]
	if !ok {
		return false
	}
	if s.Finished() || !s.IsMember(userID) {
		delete(r.byUser, userID)
		return false
	}
	return true
}

// CreateSession opens a lobby in the channel with the caller as host.
func (r *Registry) CreateSession(hostID, channelKey string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()

	if _, busy := r.byChannel[channelKey]; busy {
		return nil, ErrChannelBusy
	}
	if r.userBusyLocked(hostID) {
		return nil, ErrHostBusy
	}

	s := NewSession(hostID, channelKey)
	r.byChannel[channelKey] = s
	r.byHost[hostID] = s
	r.byUser[hostID] = s

	r.log.WithFields(logrus.Fields{
		"session": s.ID,
		"channel": channelKey,
		"host":    hostID,
	}).Info("session created")

	return &Result{
		Events: []Event{s.event(EventSessionCreated, hostID,
			fmt.Sprintf("%s has started a game, click join to play", hostID))},
		Public: s.Snapshot(),
	}, nil
}

// Join adds a user to the lobby hosted by hostID.
func (r *Registry) Join(hostID, userID string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()

	s, ok := r.byHost[hostID]
	if !ok {
		return nil, ErrNoSuchSession
	}
	if other := r.byUser[userID]; other != nil && other != s && r.userBusyLocked(userID) {
		return nil, ErrAlreadyJoined
	}
	res, err := s.join(userID)
	if err != nil {
		return nil, err
	}
	r.byUser[userID] = s
	return res, nil
}

// Leave removes a non-host member from a lobby that has not started.
func (r *Registry) Leave(hostID, userID string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()

	s, ok := r.byHost[hostID]
	if !ok {
		return nil, ErrNoSuchSession
	}
	res, err := s.leave(userID)
	if err != nil {
		return nil, err
	}
	if r.byUser[userID] == s {
		delete(r.byUser, userID)
	}
	return res, nil
}

// Cancel removes the session unconditionally. Only the host may cancel.
func (r *Registry) Cancel(hostID, requesterID string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()

	s, ok := r.byHost[hostID]
	if !ok {
		return nil, ErrNoSuchSession
	}
	if requesterID != s.HostID {
		return nil, ErrNotHost
	}
	r.removeLocked(s, "cancelled")
	return s.closeOut(EventSessionCancelled, requesterID,
		fmt.Sprintf("%s has cancelled the game", requesterID)), nil
}

// Start transitions the lobby into a running game.
func (r *Registry) Start(hostID, requesterID string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()

	s, ok := r.byHost[hostID]
	if !ok {
		return nil, ErrNoSuchSession
	}
	return s.start(requesterID)
}

// FindByParticipant resolves the session in a channel on behalf of one of
// its members. Every in-game command resolves its context through here, so
// stale sessions fail closed before any state is touched.
func (r *Registry) FindByParticipant(channelKey, userID string) (*Session, error) {
	r.mu.Lock()
	r.evictLocked()
	s, ok := r.byChannel[channelKey]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNoSuchSession
	}
	if err := s.participant(userID); err != nil {
		return nil, err
	}
	return s, nil
}

// FindByChannel returns the live session in a channel, if any, without
// membership checks. Used by the feed subscription path.
func (r *Registry) FindByChannel(channelKey string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	s, ok := r.byChannel[channelKey]
	if !ok {
		return nil, ErrNoSuchSession
	}
	return s, nil
}

// ForceReset unconditionally removes the session in a channel, bypassing
// normal validation. Used by out-of-band moderation.
func (r *Registry) ForceReset(channelKey string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byChannel[channelKey]
	if !ok {
		return nil, ErrNoSuchSession
	}
	r.removeLocked(s, "force reset")
	return s.closeOut(EventSessionReset, "",
		"the game in this channel was reset by an admin"), nil
}

// ListActiveSessions returns a snapshot of every live session's public
// state, for bulk administrative operations.
func (r *Registry) ListActiveSessions() []PublicState {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byChannel))
	for _, s := range r.byChannel {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	states := make([]PublicState, 0, len(sessions))
	for _, s := range sessions {
		states = append(states, s.Snapshot())
	}
	return states
}

// CloseAll force-finishes and removes every live session, returning the
// closing results so the adapter can notify each session's channel. Used
// for the shutdown broadcast.
func (r *Registry) CloseAll(reason string) []*Result {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byChannel))
	for _, s := range r.byChannel {
		sessions = append(sessions, s)
	}
	for _, s := range sessions {
		r.removeLocked(s, "shutdown")
	}
	r.mu.Unlock()

	results := make([]*Result, 0, len(sessions))
	for _, s := range sessions {
		results = append(results, s.closeOut(EventSessionReset, "", reason))
	}
	return results
}
