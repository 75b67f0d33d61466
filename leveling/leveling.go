// Package leveling implements the time accrual arithmetic and the experience
// curve for game mode sessions. Everything here is pure; the only source of
// randomness (the wisdom reward roll) takes an injected *rand.Rand so callers
// can seed it deterministically in tests.
package leveling

import (
	"math"
	"math/rand"
	"time"
)

// AccrueDelta returns the whole elapsed seconds between last and now.
// It never returns a negative value, even if the clock regressed.
func AccrueDelta(last, now time.Time) int {
	d := now.Sub(last)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// Curve maps accrued experience seconds to levels. Level L requires
// coefficient * L^exponent seconds, with the coefficient solved so the final
// level is reached at exactly maxTimeSeconds.
type Curve struct {
	MaxLevel       int
	MaxTimeSeconds int
	Exponent       float64

	coefficient float64
}

// NewCurve derives the curve coefficient from its endpoints.
func NewCurve(maxLevel, maxTimeSeconds int, exponent float64) Curve {
	return Curve{
		MaxLevel:       maxLevel,
		MaxTimeSeconds: maxTimeSeconds,
		Exponent:       exponent,
		coefficient:    float64(maxTimeSeconds) / math.Pow(float64(maxLevel), exponent),
	}
}

// RequiredTime returns the experience seconds needed to hold level.
// The final level lands on MaxTimeSeconds exactly, sidestepping float
// rounding in the power term.
func (c Curve) RequiredTime(level int) int {
	if level >= c.MaxLevel {
		return c.MaxTimeSeconds
	}
	if level < 1 {
		level = 1
	}
	return int(math.Floor(c.coefficient * math.Pow(float64(level), c.Exponent)))
}

// Level returns the largest level whose required time is covered by
// experienceSeconds, clamped to [1, MaxLevel].
func (c Curve) Level(experienceSeconds int) int {
	if experienceSeconds <= 0 {
		return 1
	}
	if experienceSeconds >= c.MaxTimeSeconds {
		return c.MaxLevel
	}
	lvl := int(math.Floor(math.Pow(float64(experienceSeconds)/c.coefficient, 1/c.Exponent)))
	if lvl < 1 {
		return 1
	}
	if lvl > c.MaxLevel {
		return c.MaxLevel
	}
	return lvl
}

// Progress returns how far experienceSeconds has advanced from the current
// level toward the next, clamped to [0, 1]. At MaxLevel it is 1.
func (c Curve) Progress(experienceSeconds int) float64 {
	lvl := c.Level(experienceSeconds)
	if lvl >= c.MaxLevel {
		return 1
	}
	cur := c.RequiredTime(lvl)
	next := c.RequiredTime(lvl + 1)
	if next <= cur {
		return 1
	}
	p := float64(experienceSeconds-cur) / float64(next-cur)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// SecondsToNext returns the remaining experience seconds until the next
// level, or 0 at MaxLevel.
func (c Curve) SecondsToNext(experienceSeconds int) int {
	lvl := c.Level(experienceSeconds)
	if lvl >= c.MaxLevel {
		return 0
	}
	rem := c.RequiredTime(lvl+1) - experienceSeconds
	if rem < 0 {
		return 0
	}
	return rem
}

// Stats bundles the derived fields cached on a game mode session.
type Stats struct {
	Level         int
	Progress      float64
	SecondsToNext int
}

// StatsFor computes all derived leveling fields for experienceSeconds.
func (c Curve) StatsFor(experienceSeconds int) Stats {
	return Stats{
		Level:         c.Level(experienceSeconds),
		Progress:      c.Progress(experienceSeconds),
		SecondsToNext: c.SecondsToNext(experienceSeconds),
	}
}

// WisdomGain rolls the wisdom reward for a confirmed level-up. level and
// wisdom are the values held before the level-up; maxWisdom is the fixed
// budget the final level must land on exactly. When only one level remains
// the whole remaining budget is granted, so a session that reaches MaxLevel
// always holds exactly maxWisdom. Earlier gains are drawn uniformly from
// [max(1, floor(avg*0.5)), ceil(avg*1.5)] around the per-level average.
func (c Curve) WisdomGain(rng *rand.Rand, level, wisdom, maxWisdom int) int {
	remainingLevels := c.MaxLevel - level
	remainingBudget := maxWisdom - wisdom
	if remainingLevels <= 0 || remainingBudget <= 0 {
		return 0
	}
	if remainingLevels == 1 {
		return remainingBudget
	}
	avg := float64(remainingBudget) / float64(remainingLevels)
	lo := int(math.Floor(avg * 0.5))
	if lo < 1 {
		lo = 1
	}
	hi := int(math.Ceil(avg * 1.5))
	if hi < lo {
		hi = lo
	}
	gain := lo + rng.Intn(hi-lo+1)
	if gain > remainingBudget {
		gain = remainingBudget
	}
	return gain
}
