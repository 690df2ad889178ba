// Package statistics summarises the outcome of many draws.
package statistics

import (
	"bytes"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Statistics tracks winners against the share of entries each account held
type Statistics struct {
	Rounds      int
	SumEntries  float64
	SumEntries2 float64 // Sum of squares for variance calculation

	wins     map[common.Address]int
	expected map[common.Address]float64
}

// New creates empty statistics
func New() *Statistics {
	return &Statistics{
		wins:     make(map[common.Address]int),
		expected: make(map[common.Address]float64),
	}
}

// Add records one closed round. players is the registry at the time of the
// draw, duplicates included.
func (s *Statistics) Add(players []common.Address, winner common.Address) {
	if len(players) == 0 {
		return
	}
	n := float64(len(players))
	s.Rounds++
	s.SumEntries += n
	s.SumEntries2 += n * n

	for _, p := range players {
		s.expected[p] += 1 / n
	}
	s.wins[winner]++
}

// Wins returns how many rounds addr won
func (s *Statistics) Wins(addr common.Address) int {
	return s.wins[addr]
}

// Expected returns the number of wins addr should have by its share of
// entries
func (s *Statistics) Expected(addr common.Address) float64 {
	return s.expected[addr]
}

// Accounts returns every account that held an entry, most wins first
func (s *Statistics) Accounts() []common.Address {
	out := make([]common.Address, 0, len(s.expected))
	for addr := range s.expected {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := s.wins[out[i]], s.wins[out[j]]
		if wi != wj {
			return wi > wj
		}
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}

// ChiSquare returns Pearson's statistic of observed wins against expected
// wins. Large values relative to DegreesOfFreedom suggest a biased draw.
func (s *Statistics) ChiSquare() float64 {
	var chi float64
	for addr, exp := range s.expected {
		if exp == 0 {
			continue
		}
		d := float64(s.wins[addr]) - exp
		chi += d * d / exp
	}
	return chi
}

// DegreesOfFreedom returns the degrees of freedom of ChiSquare
func (s *Statistics) DegreesOfFreedom() int {
	if len(s.expected) < 2 {
		return 0
	}
	return len(s.expected) - 1
}

// MeanEntries returns the mean number of entries per round
func (s *Statistics) MeanEntries() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.SumEntries / float64(s.Rounds)
}

// Variance returns the sample variance of entries per round
func (s *Statistics) Variance() float64 {
	if s.Rounds < 2 {
		return 0
	}
	mean := s.MeanEntries()
	return (s.SumEntries2 - float64(s.Rounds)*mean*mean) / float64(s.Rounds-1)
}

// StdDev returns the sample standard deviation of entries per round
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of MeanEntries
func (s *Statistics) StdError() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Rounds))
}

// ConfidenceInterval95 returns the 95% confidence interval for MeanEntries
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.MeanEntries()
	margin := 1.96 * s.StdError() // 95% confidence
	return mean - margin, mean + margin
}
