package card

import "testing"

func mustEval(t *testing.T, s string) Score {
	t.Helper()
	cards, err := ParseList(s)
	if err != nil {
		t.Fatal(err)
	}
	return Evaluate(cards)
}

func TestEvaluate_HandTypes(t *testing.T) {
	cases := []struct {
		hand string
		want HandType
	}{
		{"As Ks Qs Js Ts", StraightFlush},
		{"9h 9d 9s 9c 2d", FourOfKind},
		{"Ah Ad Ac Kd Ks", FullHouse},
		{"2h 7h 9h Jh Kh", Flush},
		{"6d 7h 8s 9c Td", Straight},
		{"Ah 2d 3s 4c 5d", Straight},
		{"Qh Qd Qs 4c 2d", ThreeOfKind},
		{"Jh Jd 4s 4c 2d", TwoPair},
		{"Th Td 8s 4c 2d", OnePair},
		{"Ah Jd 8s 4c 2d", HighCard},
	}

	for _, tc := range cases {
		if got := mustEval(t, tc.hand).Type(); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.hand, got, tc.want)
		}
	}
}

func TestEvaluate_WheelIsLowestStraight(t *testing.T) {
	wheel := mustEval(t, "As 2h 3c 4d 5s")
	sixHigh := mustEval(t, "2s 3h 4c 5d 6s")
	if sixHigh <= wheel {
		t.Errorf("expected 6-high straight to beat wheel: %d <= %d", sixHigh, wheel)
	}
}

func TestEvaluate_Kickers(t *testing.T) {
	if mustEval(t, "Ah Ad Ks 4c 2d") <= mustEval(t, "Ac As Qs 4h 3d") {
		t.Error("expected king kicker to beat queen kicker")
	}

	if mustEval(t, "Ah Ad 5s 5c 2d") <= mustEval(t, "Kh Kd Qs Qc Ad") {
		t.Error("expected aces up to beat kings up")
	}

	if mustEval(t, "Ah Kd 5s 5c 2d") != mustEval(t, "Ac Ks 5h 5d 2s") {
		t.Error("expected identical ranks to tie")
	}
}

func TestEvaluate_BestOfSeven(t *testing.T) {
	// Two pair on board plus a flush draw that completes.
	got := mustEval(t, "Ah Kh Qh 2h Kd Qd 7h")
	if got.Type() != Flush {
		t.Errorf("expected flush, got %v", got.Type())
	}

	fullHouse := mustEval(t, "Ks Kd Kh Qd Qs 2c 3c")
	if fullHouse.Type() != FullHouse {
		t.Errorf("expected full house, got %v", fullHouse.Type())
	}
}

func BenchmarkEvaluate7(b *testing.B) {
	cards, _ := ParseList("Ah Kh Qh 2h Kd Qd 7h")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(cards)
	}
}
