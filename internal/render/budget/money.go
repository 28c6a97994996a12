package budget

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Micros is an amount of US dollars in millionths. All arithmetic is done in
// this unit so that sums and comparisons against limits are exact.
type Micros int64

const microsPerUSD = 1_000_000

// FromUSD converts a dollar amount, rounding to the nearest micro
func FromUSD(usd float64) Micros {
	return Micros(math.Round(usd * microsPerUSD))
}

// USD converts back to dollars for display and JSON
func (m Micros) USD() float64 {
	return float64(m) / microsPerUSD
}

func (m Micros) String() string {
	return fmt.Sprintf("%.4f USD", m.USD())
}

// groupThousands formats n with a space every three digits
func groupThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	digits := strconv.FormatInt(n, 10)

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}
