// Package shortdeck implements limit hold'em over a reduced deck, with
// information sets keyed by the card clusters of an abstraction table.
//
// Seats 0 and 1 post the small and big blinds. Each betting round allows
// a fixed number of raises of a fixed size: one big blind on the first two
// rounds and two big blinds afterwards. The hand ends when one player is
// left or after the last configured round, at which point the remaining
// players show down using the full five-card board.
package shortdeck

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"github.com/pokerai/lcfr"
	"github.com/pokerai/lcfr/abstraction"
	"github.com/pokerai/lcfr/card"
)

const (
	Fold  cfr.Action = "fold"
	Call  cfr.Action = "call"
	Raise cfr.Action = "raise"
)

const boardCards = 5

var historyChar = map[cfr.Action]byte{
	Fold:  'f',
	Call:  'c',
	Raise: 'r',
}

var (
	facingBet    = []cfr.Action{Fold, Call, Raise}
	facingBetCap = []cfr.Action{Fold, Call}
	unopened     = []cfr.Action{Call, Raise}
	unopenedCap  = []cfr.Action{Call}
)

// Params define the table.
type Params struct {
	LowRank, HighRank int
	NPlayers          int
	NRounds           int
	MaxRaises         int
	SmallBlind        int
	BigBlind          int
}

// ParamsFromConfig returns the table described by a training configuration.
func ParamsFromConfig(cfg cfr.Config) Params {
	return Params{
		LowRank:    cfg.LowCardRank,
		HighRank:   cfg.HighCardRank,
		NPlayers:   cfg.NPlayers,
		NRounds:    cfg.NRounds,
		MaxRaises:  cfg.MaxRaises,
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
	}
}

func (p Params) validate() error {
	deckSize := card.NumSuits * (p.HighRank - p.LowRank + 1)
	switch {
	case p.LowRank < 2 || p.HighRank > 14 || p.LowRank >= p.HighRank:
		return errors.Errorf("invalid rank range [%d, %d]", p.LowRank, p.HighRank)
	case p.NPlayers < 2:
		return errors.Errorf("need at least 2 players, got %d", p.NPlayers)
	case 2*p.NPlayers+boardCards > deckSize:
		return errors.Errorf("%d cards cannot deal %d players and a board", deckSize, p.NPlayers)
	case p.NRounds < 1 || p.NRounds > abstraction.MaxRounds:
		return errors.Errorf("rounds must be in [1, %d], got %d", abstraction.MaxRounds, p.NRounds)
	case p.MaxRaises < 0:
		return errors.Errorf("negative raise cap %d", p.MaxRaises)
	case p.SmallBlind <= 0 || p.BigBlind <= p.SmallBlind:
		return errors.Errorf("invalid blinds %d/%d", p.SmallBlind, p.BigBlind)
	}

	return nil
}

// Game deals hands of short-deck limit hold'em. It implements cfr.Dealer.
type Game struct {
	params Params
	lookup abstraction.Lookup
	deck   []card.Card
}

// New returns a Game that maps cards to clusters with lookup.
func New(params Params, lookup abstraction.Lookup) (*Game, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	if lookup == nil {
		return nil, errors.New("an abstraction lookup is required")
	}

	return &Game{
		params: params,
		lookup: lookup,
		deck:   card.NewDeck(params.LowRank, params.HighRank),
	}, nil
}

// Params returns the table parameters.
func (g *Game) Params() Params {
	return g.params
}

// NumPlayers implements cfr.Dealer.
func (g *Game) NumPlayers() int {
	return g.params.NPlayers
}

// Deal implements cfr.Dealer. Every cluster the hand can need is looked up
// here, so the returned state never touches the abstraction table again
// and may be shared by concurrent traversals.
func (g *Game) Deal(rng *rand.Rand) (cfr.GameState, error) {
	deck := append([]card.Card(nil), g.deck...)
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	n := g.params.NPlayers
	state, err := g.NewHand(deck[:2*n], deck[2*n:2*n+boardCards])
	if err != nil {
		return nil, err
	}

	return state, nil
}

// NewHand returns the first decision of a hand in which player i holds
// holeCards[2i:2i+2]. The board must have five cards; only the cards of
// the rounds being played are ever revealed in information sets.
func (g *Game) NewHand(holeCards, board []card.Card) (*State, error) {
	n := g.params.NPlayers
	if len(holeCards) != 2*n || len(board) != boardCards {
		return nil, errors.Errorf("need %d hole cards and %d board cards, got %d and %d",
			2*n, boardCards, len(holeCards), len(board))
	}

	d := &deal{
		params:   g.params,
		hole:     append([]card.Card(nil), holeCards...),
		board:    append([]card.Card(nil), board...),
		clusters: make([][]int32, n),
		scores:   make([]card.Score, n),
	}

	cards := make([]card.Card, 0, 2+boardCards)
	for p := 0; p < n; p++ {
		hole := d.hole[2*p : 2*p+2]
		d.clusters[p] = make([]int32, g.params.NRounds)
		for r := 0; r < g.params.NRounds; r++ {
			cards = append(cards[:0], hole...)
			cards = append(cards, d.board[:abstraction.BoardSize(r)]...)
			cluster, err := g.lookup.Cluster(cards)
			if err != nil {
				return nil, errors.Wrapf(err, "cluster of %s", card.Format(cards))
			}
			d.clusters[p][r] = cluster
		}

		cards = append(cards[:0], hole...)
		cards = append(cards, d.board...)
		d.scores[p] = card.Evaluate(cards)
	}

	return newState(d), nil
}

// deal is the private and public information of a hand, fixed at the deal.
type deal struct {
	params   Params
	hole     []card.Card
	board    []card.Card
	clusters [][]int32
	scores   []card.Score
}

// State is a decision point or outcome of a hand. It implements
// cfr.GameState and is never modified after construction.
type State struct {
	deal *deal

	round  int
	player int
	// Chips committed to the pot by each player.
	contrib []int
	folded  []bool
	nActive int
	// Raises made in the current round.
	raises int
	// Players that must still act before the round closes.
	toAct    int
	history  string
	terminal bool
}

func newState(d *deal) *State {
	n := d.params.NPlayers
	s := &State{
		deal:    d,
		player:  2 % n,
		contrib: make([]int, n),
		folded:  make([]bool, n),
		nActive: n,
		toAct:   n,
	}

	s.contrib[0] = d.params.SmallBlind
	s.contrib[1] = d.params.BigBlind
	return s
}

// String implements fmt.Stringer.
func (s *State) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "round %d, player %d to act, history %q, pot %v",
		s.round, s.player, s.history, s.contrib)
	if s.terminal {
		sb.WriteString(" (terminal)")
	}
	return sb.String()
}

// IsTerminal implements cfr.GameState.
func (s *State) IsTerminal() bool {
	return s.terminal
}

// Player implements cfr.GameState.
func (s *State) Player() int {
	return s.player
}

// IsActive implements cfr.GameState.
func (s *State) IsActive(player int) bool {
	return !s.folded[player]
}

// BettingRound implements cfr.GameState.
func (s *State) BettingRound() int {
	return s.round
}

// History returns the betting history: one character per action, with
// rounds separated by '/'.
func (s *State) History() string {
	return s.history
}

// LegalActions implements cfr.GameState.
func (s *State) LegalActions() []cfr.Action {
	if s.terminal {
		return nil
	}

	capped := s.raises >= s.deal.params.MaxRaises
	switch {
	case s.facingBet() && capped:
		return facingBetCap
	case s.facingBet():
		return facingBet
	case capped:
		return unopenedCap
	default:
		return unopened
	}
}

func (s *State) facingBet() bool {
	return s.contrib[s.player] < s.maxContrib()
}

func (s *State) maxContrib() int {
	result := 0
	for _, c := range s.contrib {
		result = max(result, c)
	}
	return result
}

func (s *State) betSize() int {
	if s.round < 2 {
		return s.deal.params.BigBlind
	}
	return 2 * s.deal.params.BigBlind
}

func (s *State) isLegal(a cfr.Action) bool {
	for _, x := range s.LegalActions() {
		if x == a {
			return true
		}
	}
	return false
}

// Apply implements cfr.GameState.
func (s *State) Apply(a cfr.Action) cfr.GameState {
	if !s.isLegal(a) {
		panic(fmt.Errorf("illegal action %q in %v", a, s))
	}

	child := *s
	child.contrib = append([]int(nil), s.contrib...)
	child.history = s.history + string(historyChar[a])
	switch a {
	case Fold:
		child.folded = append([]bool(nil), s.folded...)
		child.folded[s.player] = true
		child.nActive--
		child.toAct--
	case Call:
		child.contrib[s.player] = s.maxContrib()
		child.toAct--
	case Raise:
		child.contrib[s.player] = s.maxContrib() + s.betSize()
		child.raises++
		child.toAct = s.nActive - 1
	}

	switch {
	case child.nActive == 1:
		child.terminal = true
	case child.toAct == 0:
		child.nextRound()
	default:
		child.player = child.nextActive(s.player + 1)
	}

	return &child
}

// nextRound closes the current betting round.
func (s *State) nextRound() {
	s.round++
	if s.round >= s.deal.params.NRounds {
		s.terminal = true
		return
	}

	s.history += "/"
	s.raises = 0
	s.toAct = s.nActive
	s.player = s.nextActive(0)
}

// nextActive returns the first player who has not folded, starting at seat.
func (s *State) nextActive(seat int) int {
	n := len(s.folded)
	for i := 0; i < n; i++ {
		p := (seat + i) % n
		if !s.folded[p] {
			return p
		}
	}

	panic("no active players")
}

// InfoSetKey implements cfr.GameState.
func (s *State) InfoSetKey() (string, error) {
	if s.terminal {
		return "", errors.New("terminal state has no information set")
	}

	return fmt.Sprintf("%d|%s", s.deal.clusters[s.player][s.round], s.history), nil
}

// Payout implements cfr.GameState: the player's net chips won or lost.
// A folded player's payout is known while the hand goes on without them.
func (s *State) Payout(player int) float64 {
	if s.folded[player] {
		return -float64(s.contrib[player])
	}

	if !s.terminal {
		panic("payout requested for non-terminal state: " + s.String())
	}

	pot := 0
	for _, c := range s.contrib {
		pot += c
	}

	winners := s.winners()
	for _, w := range winners {
		if w == player {
			return float64(pot)/float64(len(winners)) - float64(s.contrib[player])
		}
	}

	return -float64(s.contrib[player])
}

// winners returns the players sharing the pot.
func (s *State) winners() []int {
	var result []int
	var best card.Score
	for p, folded := range s.folded {
		if folded {
			continue
		}

		// A hand ended by folds needs no showdown.
		if s.nActive == 1 {
			return []int{p}
		}

		switch score := s.deal.scores[p]; {
		case len(result) == 0 || score > best:
			best = score
			result = append(result[:0], p)
		case score == best:
			result = append(result, p)
		}
	}

	return result
}

// HoleCards returns the cards dealt to player.
func (s *State) HoleCards(player int) []card.Card {
	return s.deal.hole[2*player : 2*player+2]
}

// Board returns the cards revealed in the current round.
func (s *State) Board() []card.Card {
	round := min(s.round, s.deal.params.NRounds-1)
	return s.deal.board[:abstraction.BoardSize(round)]
}
