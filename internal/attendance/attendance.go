// Package attendance implements the pure bookkeeping behind bunk tracking:
// attendance percentage, bunk allowance, and counter transitions for bunk and
// attend events. Functions here perform no I/O; callers persist the results.
package attendance

import (
	"math"

	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
)

// BunksPerCredit is the bunk allowance granted per academic credit under the
// credit-allowance policy.
const BunksPerCredit = 2

// Policy identifies how the bunk allowance is computed.
type Policy string

const (
	// PolicyCreditAllowance grants credits*BunksPerCredit bunks and subtracts
	// classes already missed. This is the active policy on every write path.
	PolicyCreditAllowance Policy = "credit_allowance"
	// PolicyThreshold simulates bunking forward until the attendance threshold
	// would be breached. Kept for comparison; not used by write paths.
	PolicyThreshold Policy = "threshold"
)

// ActivePolicy is the allowance policy applied consistently across subject
// creation, updates, and event recording.
const ActivePolicy = PolicyCreditAllowance

// Counters is a subject's raw attendance bookkeeping state.
type Counters struct {
	Credits         int
	TotalClasses    int
	AttendedClasses int
	MinAttendance   int
	TotalBunks      int
}

// Validate rejects states that break the counter invariants. Mutating
// operations call this before touching anything.
func (c Counters) Validate() error {
	if c.Credits < 1 {
		return appErrors.Clone(appErrors.ErrValidation, "credits must be at least 1")
	}
	if c.TotalClasses < 0 || c.AttendedClasses < 0 || c.TotalBunks < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "counters must not be negative")
	}
	if c.AttendedClasses > c.TotalClasses {
		return appErrors.Clone(appErrors.ErrValidation, "attended classes cannot exceed total classes")
	}
	if c.MinAttendance < 0 || c.MinAttendance > 100 {
		return appErrors.Clone(appErrors.ErrValidation, "min attendance must be between 0 and 100")
	}
	return nil
}

// Percentage returns attended/total as a percentage rounded to 2 decimals.
// A subject with no conducted classes reports 0, not NaN.
func Percentage(totalClasses, attendedClasses int) float64 {
	if totalClasses <= 0 {
		return 0
	}
	if attendedClasses < 0 {
		attendedClasses = 0
	}
	pct := float64(attendedClasses) / float64(totalClasses) * 100
	return math.Round(pct*100) / 100
}

// MaxBunkable returns the remaining bunk allowance under the credit-allowance
// policy: credits*BunksPerCredit minus classes already missed, floored at 0.
func MaxBunkable(credits, totalClasses, attendedClasses int) int {
	allowance := credits * BunksPerCredit
	missed := totalClasses - attendedClasses
	if missed < 0 {
		missed = 0
	}
	remaining := allowance - missed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MaxBunkableByThreshold counts how many consecutive classes could be missed
// before attendance drops below minAttendance. Returns 0 when the subject is
// already below the threshold.
func MaxBunkableByThreshold(totalClasses, attendedClasses, minAttendance int) int {
	if totalClasses <= 0 || attendedClasses <= 0 {
		return 0
	}
	if Percentage(totalClasses, attendedClasses) < float64(minAttendance) {
		return 0
	}
	count := 0
	total := totalClasses
	for Percentage(total+1, attendedClasses) >= float64(minAttendance) {
		total++
		count++
	}
	return count
}

// ApplyBunk records one missed class: the class happened (total+1) and was not
// attended. AttendedClasses is never decremented.
func ApplyBunk(c Counters) (Counters, error) {
	if err := c.Validate(); err != nil {
		return Counters{}, err
	}
	c.TotalClasses++
	c.TotalBunks++
	return c, nil
}

// ApplyAttend records one attended class.
func ApplyAttend(c Counters) (Counters, error) {
	if err := c.Validate(); err != nil {
		return Counters{}, err
	}
	c.TotalClasses++
	c.AttendedClasses++
	return c, nil
}

// Derived bundles the cached metrics recomputed from counters.
type Derived struct {
	Percentage  float64
	MaxBunkable int
}

// Recompute returns the derived metrics for the given counters.
func Recompute(c Counters) Derived {
	return Derived{
		Percentage:  Percentage(c.TotalClasses, c.AttendedClasses),
		MaxBunkable: MaxBunkable(c.Credits, c.TotalClasses, c.AttendedClasses),
	}
}
