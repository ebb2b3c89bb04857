// Package selection chooses which approved clips to stitch together for a
// short. Order is randomized and clips are greedily accumulated until the
// target duration is covered.
package selection

import (
	"errors"
	"math/rand"
	"time"
)

// ErrNoCandidates is returned when the approved pool is empty.
var ErrNoCandidates = errors.New("no approved candidates available")

// Clip is one approved candidate eligible for assembly.
type Clip struct {
	ID       string  `json:"id"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

// Plan is the ordered assembly list for a job.
type Plan struct {
	Clips []Clip `json:"clips"`
	// TotalDuration is the summed duration of the selected clips.
	TotalDuration float64 `json:"total_duration"`
	// Shortfall reports that the pool was exhausted before reaching the
	// target. The trim stage enforces the fatal floor, not the planner.
	Shortfall bool `json:"shortfall,omitempty"`
}

// Planner picks clips for a target duration. The random source is injected
// so tests can fix the shuffle order.
type Planner struct {
	rng *rand.Rand
}

// NewPlanner returns a planner driven by the given random source. A nil
// source gets a time-seeded default; the shuffle always runs so repeated
// plans over the same pool do not favor the same leading clips.
func NewPlanner(rng *rand.Rand) *Planner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{rng: rng}
}

// Plan shuffles the candidate pool and greedily accumulates clips until the
// running total reaches targetSeconds. The clip that crosses the target is
// included; the rest of the pool is left untouched.
func (p *Planner) Plan(candidates []Clip, targetSeconds float64) (*Plan, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	pool := make([]Clip, len(candidates))
	copy(pool, candidates)
	p.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	plan := &Plan{}
	for _, clip := range pool {
		plan.Clips = append(plan.Clips, clip)
		plan.TotalDuration += clip.Duration
		if plan.TotalDuration >= targetSeconds {
			return plan, nil
		}
	}
	plan.Shortfall = true
	return plan, nil
}
