// internal/game/registry_test.go
package game

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(ttl time.Duration) *Registry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRegistry(log, ttl)
}

// backdate pushes a session's last accepted command into the past so
// staleness checks fire without waiting.
func backdate(s *Session, age time.Duration) {
	s.lastActivity.Store(time.Now().Add(-age).UnixNano())
}

func TestRegistryFullGameFlow(t *testing.T) {
	r := newTestRegistry(0)

	res, err := r.CreateSession("u1", "c1")
	require.NoError(t, err)
	require.Len(t, res.Public.Players, 1)
	assert.Equal(t, "u1", res.Public.HostID)

	res, err = r.Join("u1", "u2")
	require.NoError(t, err)
	require.Len(t, res.Public.Players, 2)

	res, err = r.Start("u1", "u1")
	require.NoError(t, err)
	require.True(t, res.Public.Started)
	require.True(t, res.Public.TopCard.HasRank())
	for _, p := range res.Public.Players {
		assert.Equal(t, OpeningHandSize, p.HandSize)
	}

	s, err := r.FindByParticipant("c1", "u1")
	require.NoError(t, err)

	// Pin the table so the outcome of each command is deterministic.
	setTopCard(s, Card{Color: ColorRed, Rank: 5})
	setHand(t, s, "u1", Card{Color: ColorBlue, Rank: 7}, Card{Color: ColorRed, Rank: 1})
	setHand(t, s, "u2", Card{Color: ColorRed, Rank: 2}, Card{Color: ColorRed, Rank: 3})

	_, err = s.ApplyPlay("u1", Card{Color: ColorBlue, Rank: 7}, 0)
	assert.ErrorIs(t, err, ErrIllegalCard)
	_, err = s.ApplyPlay("u2", Card{Color: ColorRed, Rank: 2}, 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	drawRes, err := s.ApplyDraw("u1")
	require.NoError(t, err)
	assert.Len(t, drawRes.Hand, 3)
	assert.Equal(t, "u1", drawRes.Public.CurrentPlayerID)

	// The draw re-sorts the hand, so locate the known playable card.
	red1 := Card{Color: ColorRed, Rank: 1}
	idx := -1
	for i, c := range drawRes.Hand {
		if c == red1 {
			idx = i
			break
		}
	}
	require.GreaterOrEqual(t, idx, 0)
	_, err = s.ApplyPlay("u1", red1, idx)
	require.NoError(t, err)
	assert.Equal(t, "u2", s.Snapshot().CurrentPlayerID)
}

func TestCreateSessionConflicts(t *testing.T) {
	r := newTestRegistry(0)

	_, err := r.CreateSession("u1", "c1")
	require.NoError(t, err)

	_, err = r.CreateSession("u2", "c1")
	assert.ErrorIs(t, err, ErrChannelBusy, "one session per channel")

	_, err = r.CreateSession("u1", "c2")
	assert.ErrorIs(t, err, ErrHostBusy, "a host runs one session at a time")

	_, err = r.Join("u1", "u2")
	require.NoError(t, err)
	_, err = r.CreateSession("u2", "c2")
	assert.ErrorIs(t, err, ErrHostBusy, "joined players cannot host elsewhere")
}

func TestJoinConflicts(t *testing.T) {
	r := newTestRegistry(0)

	_, err := r.Join("u1", "u2")
	assert.ErrorIs(t, err, ErrNoSuchSession)

	_, err = r.CreateSession("u1", "c1")
	require.NoError(t, err)
	_, err = r.CreateSession("u3", "c2")
	require.NoError(t, err)

	_, err = r.Join("u1", "u2")
	require.NoError(t, err)

	_, err = r.Join("u3", "u2")
	assert.ErrorIs(t, err, ErrAlreadyJoined, "a user plays in one session at a time")

	_, err = r.Join("u1", "u1")
	assert.ErrorIs(t, err, ErrIsHost)
	_, err = r.Join("u1", "u2")
	assert.ErrorIs(t, err, ErrAlreadyJoined)
}

func TestLeaveFreesUserForOtherSessions(t *testing.T) {
	r := newTestRegistry(0)

	_, err := r.CreateSession("u1", "c1")
	require.NoError(t, err)
	_, err = r.CreateSession("u3", "c2")
	require.NoError(t, err)
	_, err = r.Join("u1", "u2")
	require.NoError(t, err)

	_, err = r.Leave("u1", "u9")
	assert.ErrorIs(t, err, ErrNotJoined)
	_, err = r.Leave("u1", "u1")
	assert.ErrorIs(t, err, ErrIsHost)

	_, err = r.Leave("u1", "u2")
	require.NoError(t, err)
	_, err = r.Join("u3", "u2")
	require.NoError(t, err, "leaving releases the cross-session busy mark")
}

func TestCancelRequiresHost(t *testing.T) {
	r := newTestRegistry(0)

	_, err := r.CreateSession("u1", "c1")
	require.NoError(t, err)
	_, err = r.Join("u1", "u2")
	require.NoError(t, err)

	_, err = r.Cancel("u1", "u2")
	assert.ErrorIs(t, err, ErrNotHost)

	res, err := r.Cancel("u1", "u1")
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, EventSessionCancelled, res.Events[0].Type)

	_, err = r.FindByChannel("c1")
	assert.ErrorIs(t, err, ErrNoSuchSession)
	_, err = r.CreateSession("u1", "c1")
	require.NoError(t, err, "the channel and host are free again")
}

func TestStartRequiresTwoPlayers(t *testing.T) {
	r := newTestRegistry(0)

	_, err := r.Start("u1", "u1")
	assert.ErrorIs(t, err, ErrNoSuchSession)

	_, err = r.CreateSession("u1", "c1")
	require.NoError(t, err)
	_, err = r.Start("u1", "u1")
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestFindByParticipant(t *testing.T) {
	r := newTestRegistry(0)

	_, err := r.FindByParticipant("c1", "u1")
	assert.ErrorIs(t, err, ErrNoSuchSession)

	_, err = r.CreateSession("u1", "c1")
	require.NoError(t, err)

	_, err = r.FindByParticipant("c1", "u9")
	assert.ErrorIs(t, err, ErrNotAMember)
	_, err = r.FindByParticipant("c1", "u1")
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = r.Join("u1", "u2")
	require.NoError(t, err)
	_, err = r.Start("u1", "u1")
	require.NoError(t, err)

	s, err := r.FindByParticipant("c1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "c1", s.ChannelKey)
}

func TestIdleSessionsAreEvicted(t *testing.T) {
	r := newTestRegistry(time.Minute)

	_, err := r.CreateSession("u1", "c1")
	require.NoError(t, err)
	s, err := r.FindByChannel("c1")
	require.NoError(t, err)

	backdate(s, 30*time.Second)
	_, err = r.FindByChannel("c1")
	require.NoError(t, err, "fresh sessions survive the sweep")

	backdate(s, 2*time.Minute)
	_, err = r.FindByChannel("c1")
	assert.ErrorIs(t, err, ErrNoSuchSession, "idle sessions are swept on the next command")

	_, err = r.CreateSession("u1", "c1")
	require.NoError(t, err, "eviction releases the channel and host")
}

func TestFinishedSessionsAreEvicted(t *testing.T) {
	r := newTestRegistry(time.Hour)

	_, err := r.CreateSession("u1", "c1")
	require.NoError(t, err)
	_, err = r.Join("u1", "u2")
	require.NoError(t, err)
	_, err = r.Start("u1", "u1")
	require.NoError(t, err)

	s, err := r.FindByChannel("c1")
	require.NoError(t, err)
	setTopCard(s, Card{Color: ColorRed, Rank: 5})
	setHand(t, s, "u1", Card{Color: ColorRed, Rank: 9})
	res, err := s.ApplyPlay("u1", Card{Color: ColorRed, Rank: 9}, 0)
	require.NoError(t, err)
	require.True(t, res.Public.Finished)

	_, err = r.FindByChannel("c1")
	assert.ErrorIs(t, err, ErrNoSuchSession)
	_, err = r.CreateSession("u2", "c1")
	require.NoError(t, err, "a finished game frees everyone involved")
}

func TestForceResetClearsChannel(t *testing.T) {
	r := newTestRegistry(0)

	_, err := r.ForceReset("c1")
	assert.ErrorIs(t, err, ErrNoSuchSession)

	_, err = r.CreateSession("u1", "c1")
	require.NoError(t, err)

	res, err := r.ForceReset("c1")
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, EventSessionReset, res.Events[0].Type)

	_, err = r.FindByChannel("c1")
	assert.ErrorIs(t, err, ErrNoSuchSession)
}

func TestCloseAllReturnsOneResultPerSession(t *testing.T) {
	r := newTestRegistry(0)

	for _, tc := range []struct{ host, channel string }{
		{"u1", "c1"}, {"u2", "c2"}, {"u3", "c3"},
	} {
		_, err := r.CreateSession(tc.host, tc.channel)
		require.NoError(t, err)
	}
	assert.Len(t, r.ListActiveSessions(), 3)

	results := r.CloseAll("the service is shutting down")
	require.Len(t, results, 3)
	channels := map[string]bool{}
	for _, res := range results {
		require.Len(t, res.Events, 1)
		assert.Equal(t, "the service is shutting down", res.Events[0].Message)
		channels[res.Public.ChannelKey] = true
	}
	assert.Len(t, channels, 3)
	assert.Empty(t, r.ListActiveSessions())
}
