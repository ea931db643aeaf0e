package ai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Cost is a money amount in ten-thousandths of a currency unit, so 1234 is
// 0.1234. It is stored as an integer and rendered with four decimals.
type Cost int64

const costScale = 10000

func (c Cost) String() string {
	sign := ""
	n := int64(c)
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%04d", sign, n/costScale, n%costScale)
}

func (c Cost) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "0.1234" or 0.1234. Digits past the fourth decimal
// are rejected rather than rounded.
func (c *Cost) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := ParseCost(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCost reads a decimal string with at most four fractional digits.
func ParseCost(s string) (Cost, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if !digitsOnly(whole) || !digitsOnly(frac) || whole+frac == "" {
		return 0, fmt.Errorf("cost %q: not a decimal number", s)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 4 {
		return 0, fmt.Errorf("cost %q: more than 4 decimal places", s)
	}
	frac += strings.Repeat("0", 4-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cost %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cost %q: %w", s, err)
	}

	v := Cost(w*costScale + f)
	if neg {
		v = -v
	}
	return v, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
