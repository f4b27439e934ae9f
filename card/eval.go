package card

import "fmt"

// HandType is the category of a five-card poker hand.
type HandType byte

const (
	HighCard HandType = iota
	OnePair
	TwoPair
	ThreeOfKind
	Straight
	Flush
	FullHouse
	FourOfKind
	StraightFlush
)

var handTypeStr = [...]string{
	"high card", "one pair", "two pair", "three of a kind", "straight",
	"flush", "full house", "four of a kind", "straight flush",
}

func (h HandType) String() string {
	if int(h) < len(handTypeStr) {
		return handTypeStr[h]
	}
	return fmt.Sprintf("HandType(%d)", h)
}

// Score orders hands: larger is stronger, equal scores tie.
// The hand type occupies the top bits and up to five kicker ranks follow.
type Score uint32

func (s Score) Type() HandType {
	return HandType(s >> 20)
}

const wheel = 1<<14 | 1<<5 | 1<<4 | 1<<3 | 1<<2

// Evaluate returns the score of the best five-card hand in cards.
// It accepts between five and seven cards.
func Evaluate(cards []Card) Score {
	n := len(cards)
	if n < 5 || n > 7 {
		panic(fmt.Errorf("cannot evaluate %d cards", n))
	}

	var best Score
	var hand [5]Card
	for mask := 0; mask < 1<<uint(n); mask++ {
		if popcount(mask) != 5 {
			continue
		}

		k := 0
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				hand[k] = cards[i]
				k++
			}
		}

		if s := eval5(hand); s > best {
			best = s
		}
	}

	return best
}

func eval5(hand [5]Card) Score {
	var counts [MaxRank + 1]int
	bitmask := 0
	flush := true
	for _, c := range hand {
		counts[c.Rank()]++
		bitmask |= 1 << uint(c.Rank())
		if c.Suit() != hand[0].Suit() {
			flush = false
		}
	}

	straightHigh := 0
	if popcount(bitmask) == 5 {
		if bitmask == wheel {
			straightHigh = 5
		} else {
			for high := MaxRank; high >= MinRank+4; high-- {
				run := 0x1F << uint(high-4)
				if bitmask == run {
					straightHigh = high
					break
				}
			}
		}
	}

	// Kickers ordered by multiplicity, then rank.
	var kickers [5]int
	k := 0
	for mult := 4; mult >= 1; mult-- {
		for rank := MaxRank; rank >= MinRank; rank-- {
			if counts[rank] == mult {
				for i := 0; i < mult; i++ {
					kickers[k] = rank
					k++
				}
			}
		}
	}

	var handType HandType
	switch {
	case straightHigh > 0 && flush:
		handType = StraightFlush
	case counts[kickers[0]] == 4:
		handType = FourOfKind
	case counts[kickers[0]] == 3 && counts[kickers[3]] == 2:
		handType = FullHouse
	case flush:
		handType = Flush
	case straightHigh > 0:
		handType = Straight
	case counts[kickers[0]] == 3:
		handType = ThreeOfKind
	case counts[kickers[0]] == 2 && counts[kickers[2]] == 2:
		handType = TwoPair
	case counts[kickers[0]] == 2:
		handType = OnePair
	default:
		handType = HighCard
	}

	if straightHigh > 0 {
		kickers = [5]int{straightHigh, 0, 0, 0, 0}
	}

	score := Score(handType) << 20
	for i, r := range kickers {
		score |= Score(r) << uint(4*(4-i))
	}

	return score
}

func popcount(x int) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
