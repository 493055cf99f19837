// internal/game/card.go
package game

import (
	"fmt"
	"math/rand"
)

// Color is a card face color. ColorNone marks an unassigned wild.
type Color int

const (
	ColorRed Color = iota
	ColorGreen
	ColorBlue
	ColorYellow
	ColorNone
)

var colorNames = map[Color]string{
	ColorRed:    "Red",
	ColorGreen:  "Green",
	ColorBlue:   "Blue",
	ColorYellow: "Yellow",
	ColorNone:   "",
}

func (c Color) String() string { return colorNames[c] }

// ParseColor maps a color name ("Red", "Green", "Blue", "Yellow") to its Color.
func ParseColor(s string) (Color, bool) {
	for c, name := range colorNames {
		if name == s && c != ColorNone {
			return c, true
		}
	}
	return ColorNone, false
}

// Effect is a card's special effect. Numeral cards carry EffectNone.
type Effect int

const (
	EffectNone Effect = iota
	EffectSkip
	EffectReverse
	EffectDrawTwo
	EffectWild
	EffectWildDrawFour
)

var effectNames = map[Effect]string{
	EffectNone:         "",
	EffectSkip:         "Skip",
	EffectReverse:      "Reverse",
	EffectDrawTwo:      "Draw Two",
	EffectWild:         "Wild",
	EffectWildDrawFour: "Wild Draw Four",
}

func (e Effect) String() string { return effectNames[e] }

// NoRank is the Rank value for non-numeral cards.
const NoRank = -1

// Card is a value object: a color, an optional 0-9 rank, and an effect.
// Exactly one of Rank or Effect is meaningful. Wild and WildDrawFour cards
// carry ColorNone until the playing player assigns a color.
type Card struct {
	Color  Color  `json:"color"`
	Rank   int    `json:"rank"`
	Effect Effect `json:"effect"`
}

// NewRandomCard generates a uniform random card the way the deck-less engine
// deals: a color from the four real colors and a face value 0-14 where 0-9
// are numerals, 10 is Reverse, 11 is Skip, 12 is Wild, 13 is Draw Two and
// 14 is Wild Draw Four.
func NewRandomCard(r *rand.Rand) Card {
	card := Card{
		Color: Color(r.Intn(4)),
		Rank:  NoRank,
	}
	switch face := r.Intn(15); {
	case face <= 9:
		card.Rank = face
	case face == 10:
		card.Effect = EffectReverse
	case face == 11:
		card.Effect = EffectSkip
	case face == 12:
		card.Effect = EffectWild
		card.Color = ColorNone
	case face == 13:
		card.Effect = EffectDrawTwo
	case face == 14:
		card.Effect = EffectWildDrawFour
		card.Color = ColorNone
	}
	return card
}

// HasRank reports whether the card is a plain numeral card.
func (c Card) HasRank() bool { return c.Effect == EffectNone && c.Rank >= 0 }

// IsWild reports whether the card requires a color choice when played.
func (c Card) IsWild() bool { return c.Effect == EffectWild || c.Effect == EffectWildDrawFour }

// Stackable reports whether the card adds to the pending draw stack.
func (c Card) Stackable() bool { return c.Effect == EffectDrawTwo || c.Effect == EffectWildDrawFour }

// DrawPenalty is the number of cards the effect adds to the pending stack.
func (c Card) DrawPenalty() int {
	switch c.Effect {
	case EffectDrawTwo:
		return 2
	case EffectWildDrawFour:
		return 4
	}
	return 0
}

// WithColor returns a copy of the card with the given color assigned.
// Used when a wild is played and the player has chosen its color.
func (c Card) WithColor(color Color) Card {
	c.Color = color
	return c
}

// CanPlayOn reports whether the card is a legal play against top:
// matching color, matching (non-none) effect, matching numeral rank,
// or any wild.
func (c Card) CanPlayOn(top Card) bool {
	if c.IsWild() {
		return true
	}
	if c.Color != ColorNone && c.Color == top.Color {
		return true
	}
	if c.Effect != EffectNone && c.Effect == top.Effect {
		return true
	}
	if c.HasRank() && top.HasRank() && c.Rank == top.Rank {
		return true
	}
	return false
}

// less orders cards for hand display: color, then rank, then effect.
func (c Card) less(o Card) bool {
	if c.Color != o.Color {
		return c.Color < o.Color
	}
	if c.Rank != o.Rank {
		return c.Rank < o.Rank
	}
	return c.Effect < o.Effect
}

// String renders the card the way event lines show it, e.g. "Red 4",
// "Blue Skip", "Wild Draw Four".
func (c Card) String() string {
	switch {
	case c.HasRank():
		return fmt.Sprintf("%s %d", c.Color, c.Rank)
	case c.Color == ColorNone:
		return c.Effect.String()
	default:
		return fmt.Sprintf("%s %s", c.Color, c.Effect)
	}
}
