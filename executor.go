package cfr

import (
	"math/rand"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/pokerai/lcfr/internal/f64"
	"github.com/pokerai/lcfr/internal/sampling"
)

// Executor runs external-sampling Monte Carlo CFR traversals.
//
// On the traverser's nodes every legal action is explored; on other
// players' nodes a single action is sampled from the current
// regret-matched strategy.
type Executor struct {
	// Actions whose regret is at or below the floor are skipped
	// by pruned traversals.
	floor float64
	// Strategy weights accumulate in betting rounds below this one (0 = all).
	strategyRounds int
}

func NewExecutor(floor float64, strategyRounds int) *Executor {
	return &Executor{
		floor:          floor,
		strategyRounds: strategyRounds,
	}
}

// CFR traverses the tree below state on behalf of player, updating
// regrets at each of player's information sets. It returns the sampled
// counterfactual value of state for player.
func (e *Executor) CFR(store RegretStore, state GameState, player int, rng *rand.Rand) (float64, error) {
	tr := e.newTraversal(store, player, rng, false)
	v, err := tr.cfr(state)
	glog.V(3).Infof("Full traversal for player %d visited %d nodes", player, tr.nodes)
	return v, err
}

// PrunedCFR is CFR but skips every action of player whose accumulated
// regret has reached the floor. Skipped actions receive no update.
func (e *Executor) PrunedCFR(store RegretStore, state GameState, player int, rng *rand.Rand) (float64, error) {
	tr := e.newTraversal(store, player, rng, true)
	v, err := tr.cfr(state)
	glog.V(3).Infof("Pruned traversal for player %d visited %d nodes", player, tr.nodes)
	return v, err
}

// UpdateStrategy accumulates player's current strategy into the strategy
// weights. At player's nodes one action is sampled and its weight is
// incremented; at other players' nodes every action is followed.
func (e *Executor) UpdateStrategy(store RegretStore, state GameState, player int, rng *rand.Rand) error {
	tr := e.newTraversal(store, player, rng, false)
	return tr.updateStrategy(state)
}

func (e *Executor) newTraversal(store RegretStore, player int, rng *rand.Rand, prune bool) *traversal {
	return &traversal{
		store:          store,
		player:         player,
		rng:            rng,
		prune:          prune,
		floor:          e.floor,
		strategyRounds: e.strategyRounds,
	}
}

type traversal struct {
	store          RegretStore
	player         int
	rng            *rand.Rand
	prune          bool
	floor          float64
	strategyRounds int

	values   floatSlicePool
	explored boolSlicePool
	nodes    int
}

func (tr *traversal) cfr(state GameState) (float64, error) {
	tr.nodes++
	if state.IsTerminal() || !state.IsActive(tr.player) {
		return state.Payout(tr.player), nil
	}

	key, err := state.InfoSetKey()
	if err != nil {
		return 0, errors.Wrap(err, "information set")
	}

	legal := state.LegalActions()
	sigma := tr.values.alloc(len(legal))
	defer tr.values.free(sigma)
	regretMatching(tr.store, key, legal, sigma)

	if state.Player() != tr.player {
		i := sampling.Sample(tr.rng, sigma)
		return tr.cfr(state.Apply(legal[i]))
	}

	actionValues := tr.values.alloc(len(legal))
	defer tr.values.free(actionValues)
	explored := tr.explored.alloc(len(legal))
	defer tr.explored.free(explored)

	for i, a := range legal {
		if tr.prune && tr.store.Regret(key, a) <= tr.floor {
			continue
		}

		v, err := tr.cfr(state.Apply(a))
		if err != nil {
			return 0, err
		}

		actionValues[i] = v
		explored[i] = true
	}

	// Pruned actions keep a value of 0 and do not contribute.
	value := f64.DotUnitary(sigma, actionValues)

	for i, a := range legal {
		if explored[i] {
			tr.store.AddRegret(key, a, actionValues[i]-value)
		}
	}

	return value, nil
}

func (tr *traversal) updateStrategy(state GameState) error {
	if state.IsTerminal() || !state.IsActive(tr.player) {
		return nil
	}

	if tr.strategyRounds > 0 && state.BettingRound() >= tr.strategyRounds {
		return nil
	}

	legal := state.LegalActions()
	if state.Player() != tr.player {
		for _, a := range legal {
			if err := tr.updateStrategy(state.Apply(a)); err != nil {
				return err
			}
		}

		return nil
	}

	key, err := state.InfoSetKey()
	if err != nil {
		return errors.Wrap(err, "information set")
	}

	sigma := tr.values.alloc(len(legal))
	defer tr.values.free(sigma)
	regretMatching(tr.store, key, legal, sigma)
	i := sampling.Sample(tr.rng, sigma)
	tr.store.AddStrategyWeight(key, legal[i], 1.0)
	return tr.updateStrategy(state.Apply(legal[i]))
}
