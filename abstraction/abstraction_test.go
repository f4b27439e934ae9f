package abstraction

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/pokerai/lcfr/card"
)

func testParams(workers int) BuildParams {
	return BuildParams{
		LowRank:  12,
		HighRank: 14,
		Rounds:   2,
		Clusters: [MaxRounds]int{0, 8, 0, 0},
		Samples:  16,
		Workers:  workers,
		Seed:     7,
	}
}

func mustCards(t *testing.T, s string) []card.Card {
	t.Helper()
	cards, err := card.ParseList(s)
	if err != nil {
		t.Fatal(err)
	}
	return cards
}

func TestKey_OrderInsensitive(t *testing.T) {
	a, err := Key(mustCards(t, "As Kd Qh Qs Ah"))
	if err != nil {
		t.Fatal(err)
	}

	b, err := Key(mustCards(t, "Kd As Ah Qs Qh"))
	if err != nil {
		t.Fatal(err)
	}

	if string(a) != string(b) {
		t.Errorf("expected equal keys: %x != %x", a, b)
	}

	// Moving a card between hole and board changes the key.
	c, err := Key(mustCards(t, "As Qh Kd Qs Ah"))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) == string(c) {
		t.Error("hole and board cards must not be interchangeable")
	}
}

func TestKey_BadCardCount(t *testing.T) {
	if _, err := Key(mustCards(t, "As Kd Qh")); err == nil {
		t.Error("expected error for 3 cards")
	}
}

func TestPreflopCluster(t *testing.T) {
	suited := PreflopCluster(card.MustParse("As"), card.MustParse("Ks"))
	offsuit := PreflopCluster(card.MustParse("Ad"), card.MustParse("Ks"))
	if suited == offsuit {
		t.Error("suited and offsuit hands must differ")
	}

	if PreflopCluster(card.MustParse("Ks"), card.MustParse("Ad")) != offsuit {
		t.Error("preflop cluster must not depend on card order")
	}

	if PreflopCluster(card.MustParse("Qh"), card.MustParse("Qs")) != PreflopCluster(card.MustParse("Qd"), card.MustParse("Qc")) {
		t.Error("pairs of the same rank must share a cluster")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemTable(), NewMemTable()
	if err := Build(ctx, testParams(1), a); err != nil {
		t.Fatal(err)
	}
	if err := Build(ctx, testParams(4), b); err != nil {
		t.Fatal(err)
	}

	want := NumCombos(12, 14, 0) + NumCombos(12, 14, 1)
	if int64(a.Len()) != want {
		t.Fatalf("expected %d entries, got %d", want, a.Len())
	}

	for key, cluster := range a.clusters {
		if b.clusters[key] != cluster {
			t.Fatalf("cluster for %v differs between worker counts: %d != %d",
				decodeKey([]byte(key)), cluster, b.clusters[key])
		}
	}
}

func TestBuild_StrongHandsRankHigher(t *testing.T) {
	table := NewMemTable()
	if err := Build(context.Background(), testParams(2), table); err != nil {
		t.Fatal(err)
	}

	quads, err := table.Cluster(mustCards(t, "As Ah Ad Ac Kd"))
	if err != nil {
		t.Fatal(err)
	}

	weak, err := table.Cluster(mustCards(t, "Qs Kh Ad Ac Ah"))
	if err != nil {
		t.Fatal(err)
	}

	if quads <= weak {
		t.Errorf("expected quad aces (%d) above queen-king on an ace board (%d)", quads, weak)
	}
}

func TestTable_LevelDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lut")
	w, err := CreateWith("leveldb", path)
	if err != nil {
		t.Fatal(err)
	}

	mem := NewMemTable()
	if err := Build(context.Background(), testParams(2), mem); err != nil {
		t.Fatal(err)
	}
	if err := Build(context.Background(), testParams(2), w); err != nil {
		t.Fatal(err)
	}

	table, err := Open(path, 128)
	if err != nil {
		t.Fatal(err)
	}
	defer table.Close()

	if err := table.Meta().Check(12, 14, 2); err != nil {
		t.Errorf("unexpected meta mismatch: %v", err)
	}
	if err := table.Meta().Check(10, 14, 2); err == nil {
		t.Error("expected rank mismatch")
	}
	if err := table.Meta().Check(12, 14, 3); err == nil {
		t.Error("expected round mismatch")
	}

	n := 0
	err = table.Each(func(cards []card.Card, cluster int32) error {
		n++
		want, err := mem.Cluster(cards)
		if err != nil {
			return err
		}
		if cluster != want {
			t.Errorf("%s: leveldb has %d, memory has %d", card.Format(cards), cluster, want)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != mem.Len() {
		t.Errorf("expected %d entries, iterated %d", mem.Len(), n)
	}

	// Second lookup is served from the cache.
	hand := mustCards(t, "Ks Qs Ah Ad Qd")
	first, err := table.Cluster(hand)
	if err != nil {
		t.Fatal(err)
	}
	second, err := table.Cluster(hand)
	if err != nil || second != first {
		t.Errorf("cached lookup returned %d, %v; want %d", second, err, first)
	}

	// Turn cards were not built.
	_, err = table.Cluster(mustCards(t, "Ks Qs Ah Ad Qd Kh"))
	if errors.Cause(err) != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope"), 0); err == nil {
		t.Error("expected error opening a missing table")
	}
}

func TestBackends(t *testing.T) {
	found := false
	for _, name := range Backends() {
		if name == "leveldb" {
			found = true
		}
	}
	if !found {
		t.Errorf("leveldb backend not registered: %v", Backends())
	}

	if _, err := CreateWith("nosuchbackend", t.TempDir()); err == nil {
		t.Error("expected unknown backend error")
	}
}

func TestEachCombination(t *testing.T) {
	n := 0
	eachCombination(6, 3, func(idx []int) bool {
		n++
		return true
	})
	if int64(n) != choose(6, 3) {
		t.Errorf("expected %d combinations, got %d", choose(6, 3), n)
	}

	n = 0
	eachCombination(4, 0, func(idx []int) bool {
		n++
		return true
	})
	if n != 1 {
		t.Errorf("expected the empty combination once, got %d", n)
	}
}
