package strategy

import "pitrader/internal/indicator"

// maVote detects a crossover of the short average through the long one
// between two consecutive snapshots.
//
// Up:   prior short <= prior long and current short > current long.
// Down: prior short >= prior long and current short < current long.
//
// A prior snapshot whose averages are not ready yet counts as short <= long,
// so the first tick with a ready long average buys if the short one is
// already above it. A down-cross always needs a ready prior.
func maVote(prior, current indicator.Snapshot) vote {
	if !current.MAShort.Ready || !current.MALong.Ready {
		return vote{}
	}
	v := vote{ready: true}
	cs, cl := current.MAShort.Value, current.MALong.Value

	if !prior.MAShort.Ready || !prior.MALong.Ready {
		if cs > cl {
			v.buy = true
			v.triggers = append(v.triggers, TriggerMACrossUp)
		}
		return v
	}
	ps, pl := prior.MAShort.Value, prior.MALong.Value

	if ps <= pl && cs > cl {
		v.buy = true
		v.triggers = append(v.triggers, TriggerMACrossUp)
	}
	if ps >= pl && cs < cl {
		v.sell = true
		v.triggers = append(v.triggers, TriggerMACrossDown)
	}
	return v
}
