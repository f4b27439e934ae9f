package cfr

import (
	"sync"

	"github.com/golang/glog"

	"github.com/pokerai/lcfr/internal/f64"
)

// Table maps an information set key to a value per action.
// It is the exported form of regrets and strategy weights.
type Table map[string]map[Action]float64

// Tables is a point-in-time copy of a Store.
type Tables struct {
	Regret   Table
	Strategy Table
}

// RegretStore is read and written by the CFR traversals.
type RegretStore interface {
	// Regret returns the accumulated regret, 0 if never written.
	Regret(infoSet string, a Action) float64
	// AddRegret adds delta to the accumulated regret, clamped at the floor.
	AddRegret(infoSet string, a Action, delta float64)
	// AddStrategyWeight adds delta to the accumulated strategy weight.
	AddStrategyWeight(infoSet string, a Action, delta float64)
}

// Store holds accumulated regrets and strategy weights for every
// information set touched by training. Regrets never fall below the floor.
//
// Store is safe for concurrent use, but training writes to it only
// through transactions committed between iterations.
type Store struct {
	mu    sync.RWMutex
	floor float64
	rows  map[string]*row
}

// row holds the values of one information set. Actions are kept in
// first-seen order; lookups are by label.
type row struct {
	actions  []Action
	regret   []float64
	strategy []float64
}

// NewStore returns an empty Store with the given regret floor.
func NewStore(floor float64) *Store {
	return &Store{
		floor: floor,
		rows:  make(map[string]*row),
	}
}

// NewStoreFromTables returns a Store holding a copy of the given tables.
func NewStoreFromTables(floor float64, tables Tables) *Store {
	s := NewStore(floor)
	for infoSet, values := range tables.Regret {
		for a, v := range values {
			r := s.getOrCreate(infoSet)
			r.regret[r.index(a)] = v
		}
	}

	for infoSet, values := range tables.Strategy {
		for a, v := range values {
			r := s.getOrCreate(infoSet)
			r.strategy[r.index(a)] = v
		}
	}

	return s
}

// Floor returns the regret floor.
func (s *Store) Floor() float64 {
	return s.floor
}

// Len returns the number of information sets in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Regret implements RegretStore.
func (s *Store) Regret(infoSet string, a Action) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[infoSet].get(a, regretField)
}

// StrategyWeight returns the accumulated strategy weight, 0 if never written.
func (s *Store) StrategyWeight(infoSet string, a Action) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[infoSet].get(a, strategyField)
}

// AddRegret implements RegretStore.
func (s *Store) AddRegret(infoSet string, a Action, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addRegret(infoSet, a, delta)
}

func (s *Store) addRegret(infoSet string, a Action, delta float64) {
	r := s.getOrCreate(infoSet)
	i := r.index(a)
	r.regret[i] = s.clamp(r.regret[i] + delta)
}

// AddStrategyWeight implements RegretStore.
func (s *Store) AddStrategyWeight(infoSet string, a Action, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(infoSet)
	r.strategy[r.index(a)] += delta
}

func (s *Store) setRegret(infoSet string, a Action, v float64) {
	r := s.getOrCreate(infoSet)
	r.regret[r.index(a)] = s.clamp(v)
}

func (s *Store) setStrategyWeight(infoSet string, a Action, v float64) {
	r := s.getOrCreate(infoSet)
	r.strategy[r.index(a)] = v
}

func (s *Store) clamp(v float64) float64 {
	if v < s.floor {
		return s.floor
	}
	return v
}

// CurrentStrategy returns the regret-matched strategy over the legal
// actions: proportional to positive regret, or uniform if none is positive.
func (s *Store) CurrentStrategy(infoSet string, legal []Action) []float64 {
	sigma := make([]float64, len(legal))
	regretMatching(s, infoSet, legal, sigma)
	return sigma
}

func regretMatching(rs RegretStore, infoSet string, legal []Action, dst []float64) {
	for i, a := range legal {
		dst[i] = rs.Regret(infoSet, a)
	}

	f64.PositivePart(dst, dst)
	normalize(dst)
}

// AverageStrategy returns the normalized accumulated strategy over the
// legal actions. If the information set has no strategy weight, the
// uniform distribution is returned.
func (s *Store) AverageStrategy(infoSet string, legal []Action) map[Action]float64 {
	s.mu.RLock()
	r := s.rows[infoSet]
	weights := make([]float64, len(legal))
	for i, a := range legal {
		weights[i] = r.get(a, strategyField)
	}
	s.mu.RUnlock()

	normalize(weights)
	result := make(map[Action]float64, len(legal))
	for i, a := range legal {
		result[a] = weights[i]
	}
	return result
}

// normalize scales v to sum to 1, or fills it uniformly if it sums to 0.
func normalize(v []float64) {
	total := f64.Sum(v)
	if total > 0 {
		f64.ScalUnitary(1.0/total, v)
	} else {
		f64.Fill(1.0/float64(len(v)), v)
	}
}

// Discount multiplies every regret and strategy weight by d.
func (s *Store) Discount(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		f64.ScalUnitary(d, r.regret)
		f64.ScalUnitary(d, r.strategy)
	}

	glog.V(1).Infof("Discounted %d information sets by %.6f", len(s.rows), d)
}

// Tables returns a deep copy of the store's contents.
// Only information sets with at least one written value appear.
func (s *Store) Tables() Tables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tables := Tables{
		Regret:   make(Table, len(s.rows)),
		Strategy: make(Table),
	}

	for infoSet, r := range s.rows {
		regret := make(map[Action]float64, len(r.actions))
		var strategy map[Action]float64
		for i, a := range r.actions {
			regret[a] = r.regret[i]
			if r.strategy[i] != 0 {
				if strategy == nil {
					strategy = make(map[Action]float64, len(r.actions))
				}
				strategy[a] = r.strategy[i]
			}
		}

		tables.Regret[infoSet] = regret
		if strategy != nil {
			tables.Strategy[infoSet] = strategy
		}
	}

	return tables
}

// Reset removes every entry.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string]*row)
}

func (s *Store) getOrCreate(infoSet string) *row {
	r, ok := s.rows[infoSet]
	if !ok {
		r = &row{}
		s.rows[infoSet] = r
	}
	return r
}

type field int

const (
	regretField field = iota
	strategyField
)

func (r *row) get(a Action, f field) float64 {
	if r == nil {
		return 0
	}

	for i, x := range r.actions {
		if x == a {
			if f == regretField {
				return r.regret[i]
			}
			return r.strategy[i]
		}
	}

	return 0
}

// index returns the position of a in the row, appending it if absent.
func (r *row) index(a Action) int {
	for i, x := range r.actions {
		if x == a {
			return i
		}
	}

	r.actions = append(r.actions, a)
	r.regret = append(r.regret, 0)
	r.strategy = append(r.strategy, 0)
	return len(r.actions) - 1
}
