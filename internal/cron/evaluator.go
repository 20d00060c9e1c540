// Package cron evaluates CRON expressions in UTC and runs the polling
// scheduler that dispatches due channel purges.
package cron

import (
	"errors"
	"fmt"
	"strings"
	"time"

	robfig "github.com/robfig/cron/v3"
)

var (
	// ErrInvalidExpression is returned for expressions that do not parse.
	ErrInvalidExpression = errors.New("invalid cron expression")
	// ErrEvaluation is returned when a parsed expression cannot be evaluated.
	ErrEvaluation = errors.New("cron evaluation failed")
	// ErrNoFireTime means no fire time exists in the searched range.
	ErrNoFireTime = fmt.Errorf("%w: no fire time found", ErrEvaluation)
)

// searchWindows are the look-back spans tried by PrevAtOrBefore, smallest first.
var searchWindows = []time.Duration{
	time.Minute,
	time.Hour,
	24 * time.Hour,
	32 * 24 * time.Hour,
	366 * 24 * time.Hour,
	8 * 366 * 24 * time.Hour,
}

// Evaluator parses and evaluates expressions. Five fields, or six with a
// leading seconds field, plus descriptors such as @hourly.
type Evaluator struct {
	parser robfig.Parser
}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		parser: robfig.NewParser(robfig.SecondOptional | robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow | robfig.Descriptor),
	}
}

var defaultEvaluator = NewEvaluator()

// Validate checks expr with the default evaluator.
func Validate(expr string) error {
	return defaultEvaluator.Validate(expr)
}

// Parse returns the schedule for expr. Interval descriptors (@every) and
// time zone prefixes are rejected: evaluation is anchored to UTC wall time.
func (e *Evaluator) Parse(expr string) (robfig.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	if strings.HasPrefix(expr, "CRON_TZ=") || strings.HasPrefix(expr, "TZ=") {
		return nil, fmt.Errorf("%w: time zone prefixes are not supported, expressions are evaluated in UTC", ErrInvalidExpression)
	}
	if strings.HasPrefix(expr, "@every") {
		return nil, fmt.Errorf("%w: @every is not supported", ErrInvalidExpression)
	}

	sched, err := e.parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	if _, ok := sched.(*robfig.SpecSchedule); !ok {
		return nil, fmt.Errorf("%w: unsupported schedule type %T", ErrInvalidExpression, sched)
	}
	return sched, nil
}

// Validate reports whether expr is a supported expression.
func (e *Evaluator) Validate(expr string) error {
	_, err := e.Parse(expr)
	return err
}

// NextAfter returns the earliest fire time strictly after ref.
func (e *Evaluator) NextAfter(expr string, ref time.Time) (time.Time, error) {
	sched, err := e.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(ref.UTC())
	if next.IsZero() {
		return time.Time{}, ErrNoFireTime
	}
	return next, nil
}

// NextN returns up to n fire times after ref.
func (e *Evaluator) NextN(expr string, ref time.Time, n int) ([]time.Time, error) {
	sched, err := e.Parse(expr)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, 0, n)
	cur := ref.UTC()
	for len(times) < n {
		cur = sched.Next(cur)
		if cur.IsZero() {
			break
		}
		times = append(times, cur)
	}
	if len(times) == 0 && n > 0 {
		return nil, ErrNoFireTime
	}
	return times, nil
}

// PrevAtOrBefore returns the latest fire time at or before ref.
func (e *Evaluator) PrevAtOrBefore(expr string, ref time.Time) (time.Time, error) {
	sched, err := e.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return prevAtOrBefore(sched, ref.UTC())
}

// prevAtOrBefore finds the smallest window that holds a fire time not after
// ref, then bisects that window down to the last such fire. Dense
// expressions cost O(log window) calls to Next instead of one per fire.
func prevAtOrBefore(sched robfig.Schedule, ref time.Time) (time.Time, error) {
	for _, window := range searchWindows {
		// Next is strictly after its argument; step back one second so a
		// fire exactly at the window start is included.
		lo := ref.Add(-window - time.Second)
		first := sched.Next(lo)
		if first.IsZero() || first.After(ref) {
			continue
		}

		// Invariant: Next(lo) <= ref < Next(hi).
		hi := ref
		for hi.Sub(lo) > time.Second {
			mid := lo.Add(hi.Sub(lo) / 2)
			next := sched.Next(mid)
			if !next.IsZero() && !next.After(ref) {
				lo = mid
			} else {
				hi = mid
			}
		}
		return sched.Next(lo), nil
	}
	return time.Time{}, ErrNoFireTime
}
