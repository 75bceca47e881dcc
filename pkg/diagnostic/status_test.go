package diagnostic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeSummary(t *testing.T) {
	cases := []struct {
		name      string
		start     StatusReport
		level     Level
		message   string
		wantLevel Level
		wantMsg   string
	}{
		{"ok into ok", StatusReport{Level: LevelOK}, LevelOK, "fine", LevelOK, ""},
		{"warn into ok replaces", StatusReport{Level: LevelOK, Message: "x"}, LevelWarn, "low", LevelWarn, "low"},
		{"error into warn appends", StatusReport{Level: LevelWarn, Message: "low"}, LevelError, "hot", LevelError, "low; hot"},
		{"warn into error appends keeps level", StatusReport{Level: LevelError, Message: "hot"}, LevelWarn, "low", LevelError, "hot; low"},
		{"ok into warn ignored", StatusReport{Level: LevelWarn, Message: "low"}, LevelOK, "fine", LevelWarn, "low"},
		{"append to empty message", StatusReport{Level: LevelWarn}, LevelWarn, "a", LevelWarn, "a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.start
			s.MergeSummary(tc.level, tc.message)
			assert.Equal(t, tc.wantLevel, s.Level)
			assert.Equal(t, tc.wantMsg, s.Message)
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "OK", LevelOK.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "STALE", LevelStale.String())
	assert.Equal(t, "LEVEL(9)", Level(9).String())
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewStatusReport("a")
	s.Add("k", "v")
	c := s.Clone()
	s.Values[0].Value = "changed"
	s.Add("k2", "v2")

	assert.Equal(t, "v", c.Values[0].Value)
	assert.Len(t, c.Values, 1)
}

func TestBatchHelpers(t *testing.T) {
	b := Batch{Statuses: []StatusReport{
		{Name: "a", Level: LevelWarn},
		{Name: "b", Level: LevelStale},
		{Name: "c", Level: LevelOK},
	}}
	assert.Equal(t, LevelStale, b.MaxLevel())
	assert.Equal(t, []string{"a", "b", "c"}, b.Names())
	assert.Equal(t, LevelOK, (&Batch{}).MaxLevel())
}

func TestClearAndCopySummary(t *testing.T) {
	s := NewStatusReport("a")
	s.Summary(LevelError, "bad")
	d := NewStatusReport("d")
	d.CopySummary(s)
	assert.Equal(t, LevelError, d.Level)
	assert.Equal(t, "bad", d.Message)
	d.ClearSummary()
	assert.Equal(t, LevelOK, d.Level)
	assert.Empty(t, d.Message)
	d.MergeSummaryf(LevelWarn, "%d%%", 95)
	assert.Equal(t, "95%", d.Message)
}
