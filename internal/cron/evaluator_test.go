package cron

import (
	"testing"
	"time"

	robfig "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		expr  string
		valid bool
	}{
		{"*/5 * * * *", true},
		{"0 3 * * 1-5", true},
		{"30 */10 * * * *", true},
		{"@hourly", true},
		{"@daily", true},
		{"  0 0 1 1 *  ", true},
		{"not a cron", false},
		{"", false},
		{"60 * * * *", false},
		{"* 24 * * *", false},
		{"* * * * * * *", false},
		{"* * *", false},
		{"@every 5m", false},
		{"CRON_TZ=Europe/Berlin 0 6 * * *", false},
		{"TZ=UTC 0 6 * * *", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := Validate(tt.expr)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidExpression)
			}
		})
	}
}

func TestNextAfter_IsStrictlyAfter(t *testing.T) {
	e := NewEvaluator()

	next, err := e.NextAfter("*/5 * * * *", utc("2026-03-01T10:05:00Z"))
	require.NoError(t, err)
	assert.Equal(t, utc("2026-03-01T10:10:00Z"), next)

	next, err = e.NextAfter("*/5 * * * *", utc("2026-03-01T10:04:59Z"))
	require.NoError(t, err)
	assert.Equal(t, utc("2026-03-01T10:05:00Z"), next)
}

func TestNextAfter_NormalizesToUTC(t *testing.T) {
	e := NewEvaluator()
	berlin := time.FixedZone("CET", 3600)

	next, err := e.NextAfter("0 12 * * *", time.Date(2026, 3, 1, 12, 30, 0, 0, berlin))
	require.NoError(t, err)
	assert.Equal(t, utc("2026-03-01T12:00:00Z"), next)
	assert.Equal(t, time.UTC, next.Location())
}

func TestPrevAtOrBefore(t *testing.T) {
	e := NewEvaluator()

	tests := []struct {
		name     string
		expr     string
		ref      string
		expected string
	}{
		{"exact boundary", "*/5 * * * *", "2026-03-01T10:05:00Z", "2026-03-01T10:05:00Z"},
		{"just after boundary", "*/5 * * * *", "2026-03-01T10:05:30Z", "2026-03-01T10:05:00Z"},
		{"just before boundary", "*/5 * * * *", "2026-03-01T10:04:59Z", "2026-03-01T10:00:00Z"},
		{"seconds field", "*/15 * * * * *", "2026-03-01T10:05:29Z", "2026-03-01T10:05:15Z"},
		{"hourly", "@hourly", "2026-03-01T10:59:59Z", "2026-03-01T10:00:00Z"},
		{"daily previous day", "0 3 * * *", "2026-03-01T02:00:00Z", "2026-02-28T03:00:00Z"},
		{"monthly", "0 0 1 * *", "2026-03-20T00:00:00Z", "2026-03-01T00:00:00Z"},
		{"yearly", "0 0 1 1 *", "2026-03-20T00:00:00Z", "2026-01-01T00:00:00Z"},
		{"leap day", "0 0 29 2 *", "2026-03-20T00:00:00Z", "2024-02-29T00:00:00Z"},
		{"weekday only", "0 9 * * 1", "2026-03-01T12:00:00Z", "2026-02-23T09:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev, err := e.PrevAtOrBefore(tt.expr, utc(tt.ref))
			require.NoError(t, err)
			assert.Equal(t, utc(tt.expected), prev)
		})
	}
}

func TestPrevAtOrBefore_IsGreatestFireNotAfterRef(t *testing.T) {
	e := NewEvaluator()
	exprs := []string{"*/5 * * * *", "7 */3 * * *", "0 0 * * 0", "15 10 1,15 * *", "*/20 * * * * *", "@daily"}
	start := utc("2026-01-01T00:00:00Z")

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				ref := start.Add(time.Duration(i) * 7919 * time.Second)

				prev, err := e.PrevAtOrBefore(expr, ref)
				require.NoError(t, err)
				assert.False(t, prev.After(ref), "prev %s after ref %s", prev, ref)

				next, err := e.NextAfter(expr, prev)
				require.NoError(t, err)
				assert.True(t, next.After(ref), "fire %s lies between prev %s and ref %s", next, prev, ref)
			}
		})
	}
}

type countingSchedule struct {
	robfig.Schedule
	calls int
}

func (c *countingSchedule) Next(t time.Time) time.Time {
	c.calls++
	return c.Schedule.Next(t)
}

func TestPrevAtOrBefore_DenseExpressionFarFromLastFire(t *testing.T) {
	e := NewEvaluator()
	sched, err := e.Parse("* * * * 1 *")
	require.NoError(t, err)
	counted := &countingSchedule{Schedule: sched}

	prev, err := prevAtOrBefore(counted, utc("2026-12-15T12:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, utc("2026-01-31T23:59:59Z"), prev)
	assert.Less(t, counted.calls, 200)
}

func TestPrevAtOrBefore_SubSecondRef(t *testing.T) {
	ref := utc("2026-03-01T10:00:20Z").Add(500 * time.Millisecond)
	prev, err := NewEvaluator().PrevAtOrBefore("*/20 * * * * *", ref)
	require.NoError(t, err)
	assert.Equal(t, utc("2026-03-01T10:00:20Z"), prev)
}

func TestPrevAtOrBefore_NeverFires(t *testing.T) {
	_, err := NewEvaluator().PrevAtOrBefore("0 0 30 2 *", utc("2026-03-01T00:00:00Z"))
	assert.ErrorIs(t, err, ErrNoFireTime)
	assert.ErrorIs(t, err, ErrEvaluation)
}

func TestPrevAtOrBefore_InvalidExpression(t *testing.T) {
	_, err := NewEvaluator().PrevAtOrBefore("not a cron", utc("2026-03-01T00:00:00Z"))
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestNextN(t *testing.T) {
	times, err := NewEvaluator().NextN("0 */6 * * *", utc("2026-03-01T01:00:00Z"), 5)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		utc("2026-03-01T06:00:00Z"),
		utc("2026-03-01T12:00:00Z"),
		utc("2026-03-01T18:00:00Z"),
		utc("2026-03-02T00:00:00Z"),
		utc("2026-03-02T06:00:00Z"),
	}, times)
}
