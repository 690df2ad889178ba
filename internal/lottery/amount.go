package lottery

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/params"
)

var units = map[string]*big.Int{
	"wei":   big.NewInt(params.Wei),
	"gwei":  big.NewInt(params.GWei),
	"ether": big.NewInt(params.Ether),
}

// ParseAmount parses an amount such as "10000", "0x2710", "5 gwei" or
// "0.01 ether" into wei. A bare number is read as wei.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	num, unit := s, "wei"
	if i := strings.IndexAny(s, " \t"); i > 0 {
		num, unit = s[:i], strings.TrimSpace(s[i:])
	} else if !strings.HasPrefix(s, "0x") {
		// gwei before wei so "5gwei" is not read as "5g" wei.
		for _, name := range []string{"ether", "gwei", "wei"} {
			if strings.HasSuffix(s, name) {
				num, unit = strings.TrimSuffix(s, name), name
				break
			}
		}
	}

	mult, ok := units[unit]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", unit)
	}
	if num == "" {
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	if unit == "wei" {
		v, ok := math.ParseBig256(num)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", s)
		}
		if v.Sign() < 0 {
			return nil, fmt.Errorf("negative amount %q", s)
		}
		return v, nil
	}

	r, ok := new(big.Rat).SetString(num)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(mult))
	if !r.IsInt() {
		return nil, fmt.Errorf("amount %q is not a whole number of wei", s)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FormatAmount renders wei as ether with trailing zeros trimmed.
func FormatAmount(wei *big.Int) string {
	if wei == nil {
		return "0 ether"
	}
	r := new(big.Rat).SetFrac(wei, units["ether"])
	s := r.FloatString(18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s + " ether"
}
