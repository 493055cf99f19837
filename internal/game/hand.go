// internal/game/hand.go
package game

import (
	"math/rand"
	"sort"
	"time"
)

// MaxHandSize is the overflow threshold: a hand reaching this size after a
// draw eliminates its owner from the session.
const MaxHandSize = 24

// Player is one session member. Owned exclusively by its Session; the hand
// is mutated only through the methods below, under the session lock.
type Player struct {
	ID       string
	JoinedAt time.Time

	hand []Card

	// canBeCalledOut marks "has exactly one card and the call-out race has
	// not resolved yet". Guarded by the session mutex.
	canBeCalledOut bool
}

func newPlayer(id string) *Player {
	return &Player{ID: id, JoinedAt: time.Now()}
}

// HandSize returns the number of cards held.
func (p *Player) HandSize() int { return len(p.hand) }

// Hand returns a copy of the hand in display order.
func (p *Player) Hand() []Card {
	out := make([]Card, len(p.hand))
	copy(out, p.hand)
	return out
}

// Draw appends n freshly generated cards, re-sorts the hand for display and
// returns the drawn cards for messaging. It does not apply the overflow
// rule; the session decides elimination after every draw.
func (p *Player) Draw(r *rand.Rand, n int) []Card {
	drawn := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		c := NewRandomCard(r)
		drawn = append(drawn, c)
		p.hand = append(p.hand, c)
	}
	p.sortHand()
	return drawn
}

// sortHand orders the hand for display: color, then rank, then effect,
// stable so equal cards keep their relative order.
func (p *Player) sortHand() {
	sort.SliceStable(p.hand, func(i, j int) bool {
		return p.hand[i].less(p.hand[j])
	})
}

// CardAt returns the card at a render-time index.
func (p *Player) CardAt(idx int) (Card, bool) {
	if idx < 0 || idx >= len(p.hand) {
		return Card{}, false
	}
	return p.hand[idx], true
}

// RemoveAt removes and returns the card at a render-time index. The caller
// must have re-validated the card against the index first; the hand may have
// changed between render and click.
func (p *Player) RemoveAt(idx int) (Card, error) {
	if idx < 0 || idx >= len(p.hand) {
		return Card{}, ErrIndexOutOfRange
	}
	c := p.hand[idx]
	p.hand = append(p.hand[:idx], p.hand[idx+1:]...)
	return c, nil
}

// LegalPlays returns the indices of every card that may be played against
// top. It is a pure function of (hand, top) and is recomputed on every
// render and play attempt, never cached.
func (p *Player) LegalPlays(top Card) []int {
	var idxs []int
	for i, c := range p.hand {
		if c.CanPlayOn(top) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// discardHand empties the hand. Used on elimination.
func (p *Player) discardHand() {
	p.hand = nil
	p.canBeCalledOut = false
}
