package models

import (
	"sort"
	"time"
)

// Decision is the limiter's answer for one message of a run.
type Decision struct {
	Seq      int           `json:"seq" yaml:"seq"`
	Identity string        `json:"identity" yaml:"identity"`
	At       time.Duration `json:"at" yaml:"at"`     // Offset from the start of the run
	Admitted bool          `json:"admitted" yaml:"admitted"`
	Wait     time.Duration `json:"wait" yaml:"wait"` // TimeUntilNextAllowed right after the attempt
}

// Run is a completed replay of a message stream through one limiter.
type Run struct {
	ID        string     `json:"id" yaml:"id"`
	Algorithm string     `json:"algorithm" yaml:"algorithm"`
	Source    string     `json:"source" yaml:"source"` // "simulation" or the trace path
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	Decisions []Decision `json:"decisions" yaml:"decisions"`
}

// IdentityTotals counts outcomes for a single identity.
type IdentityTotals struct {
	Identity string `json:"identity"`
	Admitted int    `json:"admitted"`
	Rejected int    `json:"rejected"`
}

// Summary aggregates a run's decisions.
type Summary struct {
	Total      int              `json:"total"`
	Admitted   int              `json:"admitted"`
	Rejected   int              `json:"rejected"`
	Identities []IdentityTotals `json:"identities"`
}

// Summarize counts admitted and rejected decisions overall and per identity.
// Identities are sorted by name.
func (r *Run) Summarize() Summary {
	byID := make(map[string]*IdentityTotals)
	s := Summary{Total: len(r.Decisions)}

	for _, d := range r.Decisions {
		t, ok := byID[d.Identity]
		if !ok {
			t = &IdentityTotals{Identity: d.Identity}
			byID[d.Identity] = t
		}
		if d.Admitted {
			s.Admitted++
			t.Admitted++
		} else {
			s.Rejected++
			t.Rejected++
		}
	}

	s.Identities = make([]IdentityTotals, 0, len(byID))
	for _, t := range byID {
		s.Identities = append(s.Identities, *t)
	}
	sort.Slice(s.Identities, func(i, j int) bool {
		return s.Identities[i].Identity < s.Identities[j].Identity
	})

	return s
}
