package cfr

// entryKey addresses one value of a Table.
type entryKey struct {
	infoSet string
	action  Action
}

// pending is a buffered value together with the store's value at the
// time the entry was first touched.
type pending struct {
	base, value float64
}

// txn buffers writes to a Store. Reads see the buffered writes on top of
// the store, and regrets are clamped at the floor as each delta lands, so
// a txn behaves exactly like the store it overlays until it is committed
// or discarded.
type txn struct {
	store    *Store
	regret   map[entryKey]*pending
	strategy map[entryKey]*pending
}

func newTxn(s *Store) *txn {
	return &txn{
		store:    s,
		regret:   make(map[entryKey]*pending),
		strategy: make(map[entryKey]*pending),
	}
}

// Regret implements RegretStore.
func (tx *txn) Regret(infoSet string, a Action) float64 {
	if p, ok := tx.regret[entryKey{infoSet, a}]; ok {
		return p.value
	}

	return tx.store.Regret(infoSet, a)
}

// AddRegret implements RegretStore.
func (tx *txn) AddRegret(infoSet string, a Action, delta float64) {
	k := entryKey{infoSet, a}
	p, ok := tx.regret[k]
	if !ok {
		v := tx.store.Regret(infoSet, a)
		p = &pending{base: v, value: v}
		tx.regret[k] = p
	}

	p.value = tx.store.clamp(p.value + delta)
}

// AddStrategyWeight implements RegretStore.
func (tx *txn) AddStrategyWeight(infoSet string, a Action, delta float64) {
	k := entryKey{infoSet, a}
	p, ok := tx.strategy[k]
	if !ok {
		v := tx.store.StrategyWeight(infoSet, a)
		p = &pending{base: v, value: v}
		tx.strategy[k] = p
	}

	p.value += delta
}

func (tx *txn) len() int {
	return len(tx.regret) + len(tx.strategy)
}

// commit writes the buffered values to the store. It must only be used
// when nothing else wrote to the store since the txn was opened.
func (tx *txn) commit() {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range tx.regret {
		s.setRegret(k.infoSet, k.action, p.value)
	}

	for k, p := range tx.strategy {
		s.setStrategyWeight(k.infoSet, k.action, p.value)
	}
}

// commitDelta adds the net change of each buffered value to the store,
// re-applying the floor. It is used when several txns opened on the same
// store are committed one after the other.
func (tx *txn) commitDelta() {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range tx.regret {
		s.addRegret(k.infoSet, k.action, p.value-p.base)
	}

	for k, p := range tx.strategy {
		r := s.getOrCreate(k.infoSet)
		r.strategy[r.index(k.action)] += p.value - p.base
	}
}
