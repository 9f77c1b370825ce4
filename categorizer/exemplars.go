package categorizer

import (
	"math/rand/v2"
	"time"
)

// ExemplarSelector picks few-shot examples from the ledger.
type ExemplarSelector interface {
	Select(ledger *Ledger) Exemplars
}

// RandomSelector samples up to PerCategory names per category, preferring
// records with Manual provenance.
type RandomSelector struct {
	Categories  []Category
	PerCategory int
	rng         *rand.Rand
}

// NewRandomSelector returns a selector over the given categories. A zero seed
// draws a fresh seed from the clock.
func NewRandomSelector(categories []Category, perCategory int, seed int64) *RandomSelector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if perCategory <= 0 {
		perCategory = defaultExemplarCount
	}
	return &RandomSelector{
		Categories:  categories,
		PerCategory: perCategory,
		rng:         rand.New(rand.NewPCG(uint64(seed), uint64(seed>>1)|1)),
	}
}

// Select builds the exemplar set. The fallback categories are never used as
// examples. The ledger is only read.
func (s *RandomSelector) Select(ledger *Ledger) Exemplars {
	out := make(Exemplars)
	if ledger == nil || ledger.Len() == 0 {
		return out
	}
	for _, cat := range s.Categories {
		if cat == CategoryUncategorized || cat == CategoryOther {
			continue
		}
		var manual, all []string
		for _, rec := range ledger.Records() {
			if rec.Category != cat {
				continue
			}
			all = append(all, rec.Name)
			if rec.IsManual() {
				manual = append(manual, rec.Name)
			}
		}
		pool := all
		if len(manual) > 0 {
			pool = manual
		}
		if picks := s.sample(pool); len(picks) > 0 {
			out[cat] = picks
		}
	}
	return out
}

// sample draws without replacement via a partial Fisher-Yates shuffle.
func (s *RandomSelector) sample(pool []string) []string {
	n := min(s.PerCategory, len(pool))
	if n == 0 {
		return nil
	}
	work := append([]string(nil), pool...)
	for i := 0; i < n; i++ {
		j := i + s.rng.IntN(len(work)-i)
		work[i], work[j] = work[j], work[i]
	}
	return work[:n]
}
