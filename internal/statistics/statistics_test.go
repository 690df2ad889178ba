package statistics

import (
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x2000000000000000000000000000000000000002")
	bob   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	carol = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

func TestStatistics_Empty(t *testing.T) {
	stats := New()

	if stats.MeanEntries() != 0 {
		t.Errorf("Expected mean of 0 for empty stats, got %f", stats.MeanEntries())
	}
	if stats.Variance() != 0 {
		t.Errorf("Expected variance of 0 for empty stats, got %f", stats.Variance())
	}
	if stats.StdError() != 0 {
		t.Errorf("Expected stderr of 0 for empty stats, got %f", stats.StdError())
	}
	if stats.ChiSquare() != 0 {
		t.Errorf("Expected chi-square of 0 for empty stats, got %f", stats.ChiSquare())
	}
	if stats.DegreesOfFreedom() != 0 {
		t.Errorf("Expected 0 degrees of freedom, got %d", stats.DegreesOfFreedom())
	}
	if len(stats.Accounts()) != 0 {
		t.Errorf("Expected no accounts, got %d", len(stats.Accounts()))
	}
}

func TestStatistics_IgnoresEmptyRound(t *testing.T) {
	stats := New()
	stats.Add(nil, alice)

	if stats.Rounds != 0 {
		t.Errorf("Expected 0 rounds, got %d", stats.Rounds)
	}
	if stats.Wins(alice) != 0 {
		t.Errorf("Expected no wins recorded, got %d", stats.Wins(alice))
	}
}

func TestStatistics_ExpectedFollowsShare(t *testing.T) {
	stats := New()
	// alice holds two of four entries, bob and carol one each.
	stats.Add([]common.Address{alice, bob, alice, carol}, alice)
	stats.Add([]common.Address{alice, bob}, bob)

	if got := stats.Expected(alice); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Expected alice share 1.0, got %f", got)
	}
	if got := stats.Expected(bob); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("Expected bob share 0.75, got %f", got)
	}
	if got := stats.Expected(carol); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("Expected carol share 0.25, got %f", got)
	}

	if stats.Wins(alice) != 1 || stats.Wins(bob) != 1 || stats.Wins(carol) != 0 {
		t.Errorf("Unexpected wins: alice=%d bob=%d carol=%d", stats.Wins(alice), stats.Wins(bob), stats.Wins(carol))
	}
	if stats.DegreesOfFreedom() != 2 {
		t.Errorf("Expected 2 degrees of freedom, got %d", stats.DegreesOfFreedom())
	}

	// (1-1)^2/1 + (1-0.75)^2/0.75 + (0-0.25)^2/0.25
	want := 0.0625/0.75 + 0.25
	if got := stats.ChiSquare(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected chi-square %f, got %f", want, got)
	}
}

func TestStatistics_EntryMoments(t *testing.T) {
	stats := New()
	stats.Add([]common.Address{alice, bob}, alice)
	stats.Add([]common.Address{alice, bob, carol, alice}, carol)
	stats.Add([]common.Address{alice, bob, carol}, bob)

	if stats.MeanEntries() != 3 {
		t.Errorf("Expected mean of 3 entries, got %f", stats.MeanEntries())
	}
	if stats.Variance() != 1 {
		t.Errorf("Expected variance of 1, got %f", stats.Variance())
	}
	if stats.StdDev() != 1 {
		t.Errorf("Expected stddev of 1, got %f", stats.StdDev())
	}

	lo, hi := stats.ConfidenceInterval95()
	margin := 1.96 / math.Sqrt(3)
	if math.Abs(lo-(3-margin)) > 1e-9 || math.Abs(hi-(3+margin)) > 1e-9 {
		t.Errorf("Unexpected confidence interval [%f, %f]", lo, hi)
	}
}

func TestStatistics_AccountsOrderedByWins(t *testing.T) {
	stats := New()
	players := []common.Address{alice, bob, carol}
	stats.Add(players, carol)
	stats.Add(players, carol)
	stats.Add(players, alice)

	got := stats.Accounts()
	want := []common.Address{carol, alice, bob}
	if len(got) != len(want) {
		t.Fatalf("Expected %d accounts, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i].Hex(), got[i].Hex())
		}
	}
}
