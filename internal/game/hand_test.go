// internal/game/hand_test.go
package game

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawAppendsAndSorts(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	p := newPlayer("u1")

	drawn := p.Draw(r, 7)
	require.Len(t, drawn, 7)
	require.Equal(t, 7, p.HandSize())

	hand := p.Hand()
	sorted := sort.SliceIsSorted(hand, func(i, j int) bool { return hand[i].less(hand[j]) })
	assert.True(t, sorted, "hand is kept in display order")

	more := p.Draw(r, 3)
	require.Len(t, more, 3)
	assert.Equal(t, 10, p.HandSize())
	hand = p.Hand()
	assert.True(t, sort.SliceIsSorted(hand, func(i, j int) bool { return hand[i].less(hand[j]) }))
}

func TestLegalPlaysIsPureAndIdempotent(t *testing.T) {
	p := newPlayer("u1")
	p.hand = []Card{
		{Color: ColorRed, Rank: 4},
		{Color: ColorBlue, Rank: 7},
		{Color: ColorNone, Rank: NoRank, Effect: EffectWild},
		{Color: ColorGreen, Rank: NoRank, Effect: EffectSkip},
	}
	top := Card{Color: ColorRed, Rank: 7}

	first := p.LegalPlays(top)
	second := p.LegalPlays(top)
	assert.Equal(t, first, second, "no intervening mutation, identical result")
	// Red 4 matches color, Blue 7 matches rank, Wild is always legal.
	assert.Equal(t, []int{0, 1, 2}, first)
}

func TestRemoveAt(t *testing.T) {
	p := newPlayer("u1")
	p.hand = []Card{
		{Color: ColorRed, Rank: 1},
		{Color: ColorGreen, Rank: 2},
	}

	c, err := p.RemoveAt(1)
	require.NoError(t, err)
	assert.Equal(t, Card{Color: ColorGreen, Rank: 2}, c)
	assert.Equal(t, 1, p.HandSize())

	_, err = p.RemoveAt(5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = p.RemoveAt(-1)
	assert.Error(t, err)
}

func TestHandReturnsCopy(t *testing.T) {
	p := newPlayer("u1")
	p.hand = []Card{{Color: ColorRed, Rank: 1}}
	view := p.Hand()
	view[0] = Card{Color: ColorBlue, Rank: 9}
	assert.Equal(t, Card{Color: ColorRed, Rank: 1}, p.hand[0])
}
