// Package tree walks small game trees exhaustively. It is meant for games
// like Kuhn poker whose full tree fits in memory.
package tree

import (
	"github.com/pokerai/lcfr"
)

// Visit calls visitor on every state reachable from root, depth-first.
func Visit(root cfr.GameState, visitor func(state cfr.GameState)) {
	visitor(root)
	if root.IsTerminal() {
		return
	}

	for _, a := range root.LegalActions() {
		Visit(root.Apply(a), visitor)
	}
}

// VisitInfoSets calls visitor once for every distinct information set
// reachable from any of the roots.
func VisitInfoSets(roots []cfr.GameState, visitor func(player int, infoSet string, legal []cfr.Action)) error {
	seen := make(map[string]struct{})
	var err error
	for _, root := range roots {
		Visit(root, func(state cfr.GameState) {
			if err != nil || state.IsTerminal() {
				return
			}

			infoSet, keyErr := state.InfoSetKey()
			if keyErr != nil {
				err = keyErr
				return
			}

			if _, ok := seen[infoSet]; ok {
				return
			}

			visitor(state.Player(), infoSet, state.LegalActions())
			seen[infoSet] = struct{}{}
		})
	}

	return err
}

func CountTerminalNodes(root cfr.GameState) int {
	total := 0
	Visit(root, func(state cfr.GameState) {
		if state.IsTerminal() {
			total++
		}
	})

	return total
}

func CountNodes(root cfr.GameState) int {
	total := 0
	Visit(root, func(state cfr.GameState) { total++ })
	return total
}

func CountInfoSets(roots []cfr.GameState) (int, error) {
	total := 0
	err := VisitInfoSets(roots, func(player int, infoSet string, legal []cfr.Action) { total++ })
	return total, err
}

// Policy returns the probability of each legal action at an information set.
type Policy func(infoSet string, legal []cfr.Action) map[cfr.Action]float64

// ExpectedValue returns player's expected payout below root when every
// player follows policy.
func ExpectedValue(root cfr.GameState, player int, policy Policy) (float64, error) {
	if root.IsTerminal() || !root.IsActive(player) {
		return root.Payout(player), nil
	}

	infoSet, err := root.InfoSetKey()
	if err != nil {
		return 0, err
	}

	legal := root.LegalActions()
	probs := policy(infoSet, legal)
	var ev float64
	for _, a := range legal {
		p := probs[a]
		if p == 0 {
			continue
		}

		v, err := ExpectedValue(root.Apply(a), player, policy)
		if err != nil {
			return 0, err
		}
		ev += p * v
	}

	return ev, nil
}
