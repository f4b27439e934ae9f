package cfr

import (
	"math/rand"
)

// Action is the label of a move available to the acting player,
// e.g. "fold", "call" or "raise".
type Action string

// GameState is a node in an abstracted extensive-form game tree.
//
// Chance events are resolved up front by a Dealer, so a GameState is
// either terminal or has an acting player. Implementations are immutable:
// Apply returns a new state and leaves the receiver untouched.
type GameState interface {
	// IsTerminal reports whether the hand is over.
	IsTerminal() bool
	// Player returns the acting player.
	// It may only be called on non-terminal states.
	Player() int
	// IsActive reports whether the given player still contests the pot.
	IsActive(player int) bool
	// BettingRound returns the index of the current betting round.
	BettingRound() int

	// LegalActions returns the actions available to the acting player,
	// in a fixed order.
	LegalActions() []Action
	// Apply returns the state after the acting player takes the given action.
	// It panics if the action is not legal.
	Apply(Action) GameState

	// InfoSetKey identifies the acting player's information set.
	//
	// It may be an arbitrary string of bytes and does not need to be
	// human-readable. An error means the state could not be abstracted
	// and training cannot continue.
	InfoSetKey() (string, error)

	// Payout returns the given player's net winnings. It is final for
	// terminal states and for players that are no longer active.
	Payout(player int) float64
}

// Dealer starts new hands of a game.
type Dealer interface {
	NumPlayers() int
	// Deal shuffles with rng and returns the first decision node of a hand.
	Deal(rng *rand.Rand) (GameState, error)
}
