// Package abstraction maps card combinations to abstract bucket ids.
//
// A lookup table (LUT) is keyed by the canonical form of a player's hole
// cards plus the visible board. The betting round is implied by the number
// of cards: 2 (preflop), 5 (flop), 6 (turn) or 7 (river).
package abstraction

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/pokerai/lcfr/card"
)

// ErrNotFound is returned when a card combination is absent from the table.
// Training cannot continue past a missing combination.
var ErrNotFound = errors.New("card combination not in abstraction table")

// MaxRounds is the number of hold'em betting rounds.
const MaxRounds = 4

var boardSizes = [MaxRounds]int{0, 3, 4, 5}

// BoardSize returns the number of visible board cards in the given round.
func BoardSize(round int) int {
	return boardSizes[round]
}

// RoundOf returns the betting round implied by a hole+board card count.
func RoundOf(nCards int) (int, error) {
	for round, n := range boardSizes {
		if n+2 == nCards {
			return round, nil
		}
	}

	return 0, errors.Errorf("no betting round has %d cards", nCards)
}

// Lookup maps hole+board cards to a cluster id.
// The first two cards are the hole cards; the rest are the board.
type Lookup interface {
	Cluster(cards []card.Card) (int32, error)
}

// Reader is a Lookup backed by a persistent table.
type Reader interface {
	Lookup
	Meta() Meta
	Close() error
}

// Writer receives the contents of a table under construction.
// Implementations need not be safe for concurrent use.
type Writer interface {
	Put(cards []card.Card, cluster int32) error
	SetMeta(m Meta) error
	Close() error
}

// Meta describes how a table was built.
type Meta struct {
	LowRank  int            `json:"low_rank"`
	HighRank int            `json:"high_rank"`
	Rounds   int            `json:"rounds"`
	Clusters [MaxRounds]int `json:"clusters"`
	Samples  int            `json:"samples"`
	Seed     int64          `json:"seed"`
}

// Check returns an error if a table with this Meta cannot serve a game
// over ranks [low, high] with the given number of betting rounds.
func (m Meta) Check(low, high, rounds int) error {
	if m.LowRank != low || m.HighRank != high {
		return errors.Errorf("abstraction table covers ranks [%d, %d], configuration wants [%d, %d]",
			m.LowRank, m.HighRank, low, high)
	}

	if m.Rounds < rounds {
		return errors.Errorf("abstraction table covers %d betting rounds, configuration wants %d",
			m.Rounds, rounds)
	}

	return nil
}

var metaKey = []byte("\xffmeta")

// Key returns the canonical table key for the given hole+board cards.
// Hole and board cards are each sorted, so input order is irrelevant.
func Key(cards []card.Card) ([]byte, error) {
	round, err := RoundOf(len(cards))
	if err != nil {
		return nil, err
	}

	key := make([]byte, 1+len(cards))
	key[0] = byte(round)
	sorted := make([]card.Card, len(cards))
	copy(sorted, cards)
	card.Sort(sorted[:2])
	card.Sort(sorted[2:])
	for i, c := range sorted {
		if !c.IsValid() {
			return nil, errors.Errorf("invalid card %#x", byte(c))
		}
		key[i+1] = byte(c)
	}

	return key, nil
}

func decodeKey(key []byte) []card.Card {
	cards := make([]card.Card, len(key)-1)
	for i, b := range key[1:] {
		cards[i] = card.Card(b)
	}
	return cards
}

// EncodeCluster encodes a cluster id as a table value.
func EncodeCluster(cluster int32) []byte {
	var buf [binary.MaxVarintLen32]byte
	n := binary.PutVarint(buf[:], int64(cluster))
	return append([]byte(nil), buf[:n]...)
}

// DecodeCluster is the inverse of EncodeCluster.
func DecodeCluster(buf []byte) (int32, error) {
	v, n := binary.Varint(buf)
	if n <= 0 {
		return 0, errors.New("corrupt cluster value")
	}
	return int32(v), nil
}

// Backend opens and creates tables of one storage engine.
type Backend struct {
	Create func(path string) (Writer, error)
	Open   func(path string, cacheSize int) (Reader, error)
}

var (
	backendsMu sync.Mutex
	backends   = make(map[string]Backend)
)

// RegisterBackend makes a storage engine available by name.
func RegisterBackend(name string, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, ok := backends[name]; ok {
		panic(fmt.Errorf("abstraction backend %q registered twice", name))
	}
	backends[name] = b
}

// Backends lists the registered storage engines.
func Backends() []string {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	return backendNames()
}

func backend(name string) (Backend, error) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	b, ok := backends[name]
	if !ok {
		return Backend{}, errors.Errorf("unknown abstraction backend %q (have %v)", name, backendNames())
	}
	return b, nil
}

func backendNames() []string {
	var names []string
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateWith creates a new table at path using the named backend.
func CreateWith(name, path string) (Writer, error) {
	b, err := backend(name)
	if err != nil {
		return nil, err
	}
	return b.Create(path)
}

// OpenWith opens an existing table at path using the named backend.
func OpenWith(name, path string, cacheSize int) (Reader, error) {
	b, err := backend(name)
	if err != nil {
		return nil, err
	}
	return b.Open(path, cacheSize)
}
