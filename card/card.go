// Package card encodes playing cards and evaluates hold'em hands.
package card

import (
	"fmt"
	"sort"
	"strings"
)

// Card packs a suit in the high nibble and a rank (2..14, ace high)
// in the low nibble. The zero Card is invalid.
type Card byte

type Suit byte

const (
	Spade Suit = iota
	Heart
	Club
	Diamond
)

const NumSuits = 4

const (
	MinRank = 2
	MaxRank = 14
)

var suitStr = [...]string{"s", "h", "c", "d"}

const rankStr = "??23456789TJQKA"

func (s Suit) String() string {
	if int(s) < len(suitStr) {
		return suitStr[s]
	}
	return "?"
}

// New returns the card with the given rank and suit.
func New(rank int, suit Suit) Card {
	if rank < MinRank || rank > MaxRank || suit >= NumSuits {
		panic(fmt.Errorf("invalid card: rank=%d suit=%d", rank, suit))
	}

	return Card(byte(suit)<<4 | byte(rank))
}

func (c Card) Rank() int {
	return int(c & 0x0F)
}

func (c Card) Suit() Suit {
	return Suit(c >> 4)
}

func (c Card) IsValid() bool {
	r := c.Rank()
	return r >= MinRank && r <= MaxRank && c.Suit() < NumSuits
}

// String implements fmt.Stringer, e.g. "As" or "Td".
func (c Card) String() string {
	if !c.IsValid() {
		return "??"
	}

	return string(rankStr[c.Rank()]) + c.Suit().String()
}

// Parse converts strings like "As", "Td" or "10h" to a Card.
func Parse(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid card string: %q", s)
	}

	rankPart, suitPart := strings.ToUpper(s[:len(s)-1]), strings.ToLower(s[len(s)-1:])
	if rankPart == "10" {
		rankPart = "T"
	}

	rank := strings.Index(rankStr, rankPart)
	if len(rankPart) != 1 || rank < MinRank {
		return 0, fmt.Errorf("invalid card rank: %q", s)
	}

	for i, str := range suitStr {
		if str == suitPart {
			return New(rank, Suit(i)), nil
		}
	}

	return 0, fmt.Errorf("invalid card suit: %q", s)
}

// MustParse is Parse but panics on error.
func MustParse(s string) Card {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseList parses a whitespace-separated list of cards.
func ParseList(s string) ([]Card, error) {
	var result []Card
	for _, field := range strings.Fields(s) {
		c, err := Parse(field)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// NewDeck returns all four suits of every rank in [low, high],
// ordered by rank then suit.
func NewDeck(low, high int) []Card {
	if low < MinRank || high > MaxRank || low > high {
		panic(fmt.Errorf("invalid deck ranks: [%d, %d]", low, high))
	}

	deck := make([]Card, 0, NumSuits*(high-low+1))
	for rank := low; rank <= high; rank++ {
		for suit := Spade; suit < NumSuits; suit++ {
			deck = append(deck, New(rank, suit))
		}
	}

	return deck
}

// Sort orders cards by rank, then suit, in place.
func Sort(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Rank() != cards[j].Rank() {
			return cards[i].Rank() < cards[j].Rank()
		}
		return cards[i].Suit() < cards[j].Suit()
	})
}

// Contains reports whether c is in cards.
func Contains(cards []Card, c Card) bool {
	for _, x := range cards {
		if x == c {
			return true
		}
	}
	return false
}

// Without returns the cards of deck not present in any of the exclusions.
func Without(deck []Card, exclude ...[]Card) []Card {
	result := make([]Card, 0, len(deck))
outer:
	for _, c := range deck {
		for _, ex := range exclude {
			if Contains(ex, c) {
				continue outer
			}
		}
		result = append(result, c)
	}
	return result
}

// Format renders cards as a space-separated string.
func Format(cards []Card) string {
	strs := make([]string, len(cards))
	for i, c := range cards {
		strs[i] = c.String()
	}
	return strings.Join(strs, " ")
}
