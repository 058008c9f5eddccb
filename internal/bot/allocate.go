package bot

import (
	"math"
	"math/rand"
	"sort"

	"pitrader/config"
)

// allocate picks which of the candidate BUYs (in evaluation order) can be
// funded from available, each costing costPerBuy. It returns the indices
// of the selected and of the ignored candidates, both ascending.
func allocate(n int, available, costPerBuy float64, policy string, rng *rand.Rand) (selected, ignored []int) {
	if n == 0 {
		return nil, nil
	}
	affordable := 0
	if costPerBuy > 0 && available > 0 {
		affordable = int(math.Floor(available / costPerBuy))
	}
	if affordable >= n {
		return seq(0, n), nil
	}

	var pick []int
	switch policy {
	case config.AllocRandom:
		pick = rng.Perm(n)[:affordable]
		sort.Ints(pick)
	default:
		pick = seq(0, affordable)
	}

	chosen := make(map[int]bool, len(pick))
	for _, i := range pick {
		chosen[i] = true
	}
	for i := 0; i < n; i++ {
		if !chosen[i] {
			ignored = append(ignored, i)
		}
	}
	return pick, ignored
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
