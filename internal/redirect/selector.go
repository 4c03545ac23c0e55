package redirect

import (
	"github.com/abdusco/linkhub/internal"
	"github.com/samber/lo"
)

// SelectTarget picks one active target at random, proportionally to its
// weight. It returns false only when no target is active.
func SelectTarget(targets []internal.LinkTarget, random func() float64) (internal.LinkTarget, bool) {
	active := lo.Filter(targets, func(t internal.LinkTarget, _ int) bool {
		return t.IsActive
	})

	switch len(active) {
	case 0:
		return internal.LinkTarget{}, false
	case 1:
		return active[0], true
	}

	total := lo.SumBy(active, func(t internal.LinkTarget) int {
		return t.Weight
	})

	r := random() * float64(total)
	for _, t := range active {
		r -= float64(t.Weight)
		if r <= 0 {
			return t, true
		}
	}

	return active[len(active)-1], true
}
