// Package kuhn implements Kuhn Poker, adapted from:
// https://justinsermeno.com/posts/cfr/.
//
// Each player antes 1 and is dealt one of three cards. Player 0 may check
// or bet 1; a player facing a bet may fold (check) or call (bet).
package kuhn

import (
	"fmt"
	"math/rand"

	"github.com/pokerai/lcfr"
)

const (
	player0 = 0
	player1 = 1
)

const (
	Check cfr.Action = "c"
	Bet   cfr.Action = "b"
)

var actions = []cfr.Action{Check, Bet}

type Card int

const (
	Jack Card = iota
	Queen
	King
)

var cardStr = [...]string{
	"J",
	"Q",
	"K",
}

func (c Card) String() string {
	return cardStr[c]
}

// Game implements cfr.Dealer for Kuhn Poker.
type Game struct{}

// NumPlayers implements cfr.Dealer.
func (Game) NumPlayers() int {
	return 2
}

// Deal implements cfr.Dealer.
func (Game) Deal(rng *rand.Rand) (cfr.GameState, error) {
	perm := rng.Perm(3)
	return NewHand(Card(perm[0]), Card(perm[1])), nil
}

// AllDeals returns the root of every possible hand.
func AllDeals() []*PokerNode {
	var result []*PokerNode
	for _, p0 := range []Card{Jack, Queen, King} {
		for _, p1 := range []Card{Jack, Queen, King} {
			if p0 != p1 {
				result = append(result, NewHand(p0, p1))
			}
		}
	}

	return result
}

// PokerNode implements cfr.GameState for Kuhn Poker.
type PokerNode struct {
	history string

	// Private card held by either player.
	p0Card, p1Card Card
}

// NewHand returns the first decision of a hand with the given cards.
func NewHand(p0Card, p1Card Card) *PokerNode {
	return &PokerNode{p0Card: p0Card, p1Card: p1Card}
}

// String implements fmt.Stringer.
func (k *PokerNode) String() string {
	return fmt.Sprintf("Player %v's turn. History: %3s [Cards: P0 - %s, P1 - %s]",
		k.Player(), k.history, k.p0Card, k.p1Card)
}

// IsTerminal implements cfr.GameState.
func (k *PokerNode) IsTerminal() bool {
	return (k.history == "cc" || k.history == "cbc" ||
		k.history == "cbb" || k.history == "bc" || k.history == "bb")
}

// Player implements cfr.GameState.
func (k *PokerNode) Player() int {
	return len(k.history) % 2
}

// IsActive implements cfr.GameState.
func (k *PokerNode) IsActive(player int) bool {
	return k.folded() != player
}

// folded returns the player who folded, or -1.
func (k *PokerNode) folded() int {
	switch k.history {
	case "bc":
		return player1
	case "cbc":
		return player0
	}

	return -1
}

// BettingRound implements cfr.GameState.
func (k *PokerNode) BettingRound() int {
	return 0
}

// LegalActions implements cfr.GameState.
func (k *PokerNode) LegalActions() []cfr.Action {
	if k.IsTerminal() {
		return nil
	}

	return actions
}

// Apply implements cfr.GameState.
func (k *PokerNode) Apply(a cfr.Action) cfr.GameState {
	if k.IsTerminal() || (a != Check && a != Bet) {
		panic(fmt.Errorf("illegal action %q in %v", a, k))
	}

	child := *k
	child.history += string(a)
	return &child
}

// InfoSetKey implements cfr.GameState.
func (k *PokerNode) InfoSetKey() (string, error) {
	return k.playerCard(k.Player()).String() + "-" + k.history, nil
}

// Payout implements cfr.GameState.
func (k *PokerNode) Payout(player int) float64 {
	cardPlayer := k.playerCard(player)
	cardOpponent := k.playerCard(1 - player)

	switch k.history {
	case "bc", "cbc":
		// Last player folded. The other player wins the ante.
		if k.folded() == player {
			return -1.0
		}
		return 1.0
	case "cc":
		// Showdown with no bets.
		if cardPlayer > cardOpponent {
			return 1.0
		}
		return -1.0
	case "bb", "cbb":
		// Showdown with 1 bet.
		if cardPlayer > cardOpponent {
			return 2.0
		}
		return -2.0
	}

	panic("payout requested for non-terminal history: " + k.history)
}

func (k *PokerNode) playerCard(player int) Card {
	if player == player0 {
		return k.p0Card
	}

	return k.p1Card
}
