package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func anchor(s string) *time.Time {
	t := at(s + "T00:00")
	return &t
}

func TestFixedDailyFirstActivation(t *testing.T) {
	cfg := Config{Type: Fixed, Period: Daily}
	assert.Equal(t, at("2025-11-13T03:00"), FirstActivationExpiration(cfg, at("2025-11-12T10:00")))
}

func TestFixedPeriods(t *testing.T) {
	from := at("2025-01-31T10:00")

	cases := map[string]time.Time{
		Daily:   at("2025-02-01T03:00"),
		Repeat:  at("2025-02-01T03:00"),
		Unique:  at("2025-02-01T03:00"),
		Weekly:  at("2025-02-07T03:00"),
		Monthly: time.Date(2025, 1, 31, 3, 0, 0, 0, time.UTC).AddDate(0, 1, 0),
	}
	for p, want := range cases {
		assert.Equal(t, want, NextExpiration(Config{Type: Fixed, Period: p}, from), p)
	}
}

func TestWeekdaysFirstActivation(t *testing.T) {
	cfg := Config{Type: Weekdays, ActiveDays: []int{1, 3, 5}}

	// 周二不可用，直接跳到周三
	assert.Equal(t, at("2025-11-12T03:00"), FirstActivationExpiration(cfg, at("2025-11-11T14:00")))
	// 周一可用，但首次激活看向下一个可用日
	assert.Equal(t, at("2025-11-12T03:00"), FirstActivationExpiration(cfg, at("2025-11-10T10:00")))
	// 周三可用，下一个是周五
	assert.Equal(t, at("2025-11-14T03:00"), FirstActivationExpiration(cfg, at("2025-11-12T14:00")))
	// 周五之后跨周末到周一
	assert.Equal(t, at("2025-11-17T03:00"), NextExpiration(cfg, at("2025-11-14T12:00")))
}

func TestFirstActivationBeforeBoundaryLooksAhead(t *testing.T) {
	cfg := Config{Type: Weekdays, ActiveDays: []int{1, 3, 5}}

	// 周一 01:00 的下一次过期是当天 03:00，但首次激活不会给同日周期
	assert.Equal(t, at("2025-11-10T03:00"), NextExpiration(cfg, at("2025-11-10T01:00")))
	assert.Equal(t, at("2025-11-12T03:00"), FirstActivationExpiration(cfg, at("2025-11-10T01:00")))
}

func TestPatternEligibility(t *testing.T) {
	cfg := Config{Type: Pattern, Pattern: "1,0", Anchor: anchor("2025-11-11")}

	assert.True(t, IsEligibleOn(cfg, at("2025-11-11T12:00")))
	assert.False(t, IsEligibleOn(cfg, at("2025-11-12T12:00")))
	assert.True(t, IsEligibleOn(cfg, at("2025-11-13T12:00")))

	// anchor 之前的日期同样归一化
	assert.False(t, IsEligibleOn(cfg, at("2025-11-10T12:00")))
	assert.True(t, IsEligibleOn(cfg, at("2025-11-09T12:00")))

	assert.Equal(t, at("2025-11-13T03:00"), NextExpiration(cfg, at("2025-11-12T10:00")))
	assert.Equal(t, at("2025-11-13T03:00"), NextExpiration(cfg, at("2025-11-11T10:00")))
}

func TestPatternAnchorReadBackInAnotherZone(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	stored := time.Date(2025, 11, 11, 0, 0, 0, 0, shanghai).UTC()
	cfg := Config{Type: Pattern, Pattern: "1,0", Anchor: &stored}

	day := func(d, h int) time.Time { return time.Date(2025, 11, d, h, 0, 0, 0, shanghai) }

	assert.True(t, IsEligibleOn(cfg, day(11, 10)))
	assert.False(t, IsEligibleOn(cfg, day(12, 10)))
	assert.True(t, IsEligibleOn(cfg, day(13, 10)))

	assert.Equal(t, day(13, 3), NextExpiration(cfg, day(12, 10)))
	assert.Equal(t, day(13, 3), FirstActivationExpiration(cfg, day(11, 10)))
}

func TestBoundary(t *testing.T) {
	configs := []Config{
		{Type: Fixed, Period: Daily},
		{Type: Weekdays, ActiveDays: []int{0, 1, 2, 3, 4, 5, 6}},
		{Type: Pattern, Pattern: "1", Anchor: anchor("2025-01-01")},
	}

	for _, cfg := range configs {
		assert.Equal(t, at("2025-11-12T03:00"), NextExpiration(cfg, at("2025-11-12T02:59")), cfg.String())
		assert.Equal(t, at("2025-11-13T03:00"), NextExpiration(cfg, at("2025-11-12T03:01")), cfg.String())
	}
}

func TestEligibilityAgreesWithNextExpiration(t *testing.T) {
	configs := []Config{
		{Type: Fixed, Period: Daily},
		{Type: Fixed, Period: Monthly},
		{Type: Weekdays, ActiveDays: []int{1, 3, 5}},
		{Type: Weekdays, ActiveDays: []int{6}},
		{Type: Pattern, Pattern: "1,0", Anchor: anchor("2025-11-11")},
		{Type: Pattern, Pattern: "0,0,1,0,0", Anchor: anchor("2025-12-25")},
		{Type: Weekdays},
		{Type: Pattern, Pattern: "0,0"},
	}

	start := at("2025-11-01T00:00")
	for _, cfg := range configs {
		for h := 0; h < 24*21; h += 5 {
			from := start.Add(time.Duration(h) * time.Hour)
			next := NextExpiration(cfg, from)

			assert.True(t, IsEligibleOn(cfg, next), "%s from %s", cfg, from)
			assert.Equal(t, 3, next.Hour())
			assert.False(t, next.Before(from), "%s from %s", cfg, from)

			first := FirstActivationExpiration(cfg, from)
			assert.True(t, IsEligibleOn(cfg, first), "%s first from %s", cfg, from)
			assert.True(t, first.After(from))
		}
	}
}

func TestMalformedDegradesToDaily(t *testing.T) {
	from := at("2025-11-12T10:00")
	want := at("2025-11-13T03:00")

	for _, cfg := range []Config{
		{Type: Fixed, Period: "X"},
		{Type: Weekdays, ActiveDays: []int{9}},
		{Type: Pattern, Pattern: "abc", Anchor: anchor("2025-11-11")},
		{Type: Pattern, Pattern: "1,0"},
		{Type: "HOURLY"},
	} {
		assert.Equal(t, want, NextExpiration(cfg, from), cfg.String())
		assert.True(t, IsEligibleOn(cfg, from), cfg.String())
		assert.True(t, IsRecurring(cfg), cfg.String())
	}
}

func TestIsRecurring(t *testing.T) {
	assert.False(t, IsRecurring(Config{Type: Fixed, Period: Unique}))
	assert.True(t, IsRecurring(Config{Type: Fixed, Period: Daily}))
	assert.True(t, IsRecurring(Config{Type: Weekdays, ActiveDays: []int{2}}))
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate(Config{Type: Fixed, Period: Weekly}).Valid)
	assert.True(t, Validate(Config{Type: Weekdays, ActiveDays: []int{0, 6}}).Valid)
	assert.True(t, Validate(Config{Type: Pattern, Pattern: "1,0,1", Anchor: anchor("2025-01-01")}).Valid)

	res := Validate(Config{Type: Fixed, Period: "Q"})
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 1)

	res = Validate(Config{Type: Weekdays, ActiveDays: []int{1, 7, -1}})
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)

	assert.False(t, Validate(Config{Type: Weekdays}).Valid)

	res = Validate(Config{Type: Pattern, Pattern: "1,2"})
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)

	assert.False(t, Validate(Config{Type: "DAILY"}).Valid)
}
