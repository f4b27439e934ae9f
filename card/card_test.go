package card

import "testing"

func TestParse(t *testing.T) {
	cases := map[string]Card{
		"As":  New(14, Spade),
		"td":  New(10, Diamond),
		"10h": New(10, Heart),
		"2c":  New(2, Club),
	}

	for s, want := range cases {
		got, err := Parse(s)
		if err != nil {
			t.Errorf("Parse(%q): %v", s, err)
			continue
		}
		if got != want {
			t.Errorf("Parse(%q) = %v, want %v", s, got, want)
		}
	}

	for _, bad := range []string{"", "A", "1s", "Ax", "ZZs"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q): expected error", bad)
		}
	}
}

func TestCard_String(t *testing.T) {
	for _, s := range []string{"As", "Kh", "Tc", "9d", "2s"} {
		if got := MustParse(s).String(); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}

func TestNewDeck(t *testing.T) {
	deck := NewDeck(10, 14)
	if len(deck) != 20 {
		t.Fatalf("expected 20 cards, got %d", len(deck))
	}

	seen := make(map[Card]bool)
	for _, c := range deck {
		if !c.IsValid() || c.Rank() < 10 {
			t.Errorf("unexpected card %v", c)
		}
		if seen[c] {
			t.Errorf("duplicate card %v", c)
		}
		seen[c] = true
	}
}

func TestWithout(t *testing.T) {
	deck := NewDeck(13, 14)
	hole := []Card{MustParse("As"), MustParse("Kd")}
	rest := Without(deck, hole)
	if len(rest) != 6 {
		t.Fatalf("expected 6 cards, got %d", len(rest))
	}
	for _, c := range hole {
		if Contains(rest, c) {
			t.Errorf("%v should have been removed", c)
		}
	}
}

func TestSort(t *testing.T) {
	cards, err := ParseList("Ks 2d Ah 2c")
	if err != nil {
		t.Fatal(err)
	}

	Sort(cards)
	if got := Format(cards); got != "2c 2d Ks Ah" {
		t.Errorf("unexpected order: %s", got)
	}
}
