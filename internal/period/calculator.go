package period

import (
	"fmt"
	"strings"
	"time"
)

// Type 周期类型
type Type string

const (
	Fixed    Type = "FIXED"
	Weekdays Type = "WEEKDAYS"
	Pattern  Type = "PATTERN"
)

// FIXED 类型的周期字母
const (
	Daily    = "D"
	Weekly   = "W"
	Monthly  = "M"
	Repeat   = "R"
	Unique   = "U"
	boundary = 3 // 每日 03:00 为周期分界
)

// Config 任务模板的周期描述
type Config struct {
	Anchor     *time.Time
	Type       Type
	Period     string
	Pattern    string
	ActiveDays []int
}

// Result 周期配置校验结果
type Result struct {
	Errors []string
	Valid  bool
}

// Boundary 返回 t 所在日期（t 的时区）的 03:00
func Boundary(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, boundary, 0, 0, 0, t.Location())
}

// IsEligibleOn 判断某天是否允许该任务活动
func IsEligibleOn(cfg Config, date time.Time) bool {
	switch cfg.normalized().Type {
	case Weekdays:
		return hasWeekday(cfg.activeDays(), date.Weekday())
	case Pattern:
		bits, _ := ParseBits(cfg.Pattern)
		return bits[patternIndex(*cfg.Anchor, date, len(bits))]
	default:
		return true
	}
}

// NextExpiration 计算从 from 开始的下一个过期时间，统一落在 03:00
func NextExpiration(cfg Config, from time.Time) time.Time {
	cfg = cfg.normalized()
	today := Boundary(from)

	if from.Before(today) && (cfg.Type == Fixed || IsEligibleOn(cfg, from)) {
		return today
	}

	switch cfg.Type {
	case Weekdays, Pattern:
		return nextEligibleAfter(cfg, today)
	}

	switch cfg.Period {
	case Weekly:
		return today.AddDate(0, 0, 7)
	case Monthly:
		return today.AddDate(0, 1, 0)
	default:
		return today.AddDate(0, 0, 1)
	}
}

// FirstActivationExpiration 首次激活时的过期时间。
// WEEKDAYS/PATTERN 在可用日激活时不会在当天分界过期，总是看向之后的下一个可用日。
func FirstActivationExpiration(cfg Config, at time.Time) time.Time {
	cfg = cfg.normalized()
	if cfg.Type == Fixed || !IsEligibleOn(cfg, at) {
		return NextExpiration(cfg, at)
	}
	return nextEligibleAfter(cfg, Boundary(at))
}

// IsRecurring FIXED/U 之外的周期都会重复
func IsRecurring(cfg Config) bool {
	n := cfg.normalized()
	return !(n.Type == Fixed && n.Period == Unique)
}

// Validate 供目录层在创建模板时拒绝非法周期配置
func Validate(cfg Config) Result {
	var errs []string

	switch cfg.Type {
	case Fixed:
		switch cfg.Period {
		case Daily, Weekly, Monthly, Repeat, Unique:
		default:
			errs = append(errs, fmt.Sprintf("period must be one of D,W,M,R,U, got %q", cfg.Period))
		}
	case Weekdays:
		if len(cfg.ActiveDays) == 0 {
			errs = append(errs, "active_days must not be empty")
		}
		for _, d := range cfg.ActiveDays {
			if d < 0 || d > 6 {
				errs = append(errs, fmt.Sprintf("active_days entry %d out of range [0,6]", d))
			}
		}
	case Pattern:
		if _, ok := ParseBits(cfg.Pattern); !ok {
			errs = append(errs, fmt.Sprintf("period_pattern must be a non-empty sequence of 0/1, got %q", cfg.Pattern))
		}
		if cfg.Anchor == nil {
			errs = append(errs, "pattern anchor date is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown period type %q", cfg.Type))
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ParseBits 解析 "1,0,1" 或 "101" 形式的位序列
func ParseBits(pattern string) ([]bool, bool) {
	var bits []bool
	for _, r := range pattern {
		switch r {
		case '1':
			bits = append(bits, true)
		case '0':
			bits = append(bits, false)
		case ',', ' ':
		default:
			return nil, false
		}
	}
	return bits, len(bits) > 0
}

// normalized 非法配置退化为每日 FIXED
func (c Config) normalized() Config {
	daily := Config{Type: Fixed, Period: Daily}

	switch c.Type {
	case Fixed:
		switch c.Period {
		case Daily, Weekly, Monthly, Repeat, Unique:
			return c
		}
		return daily
	case Weekdays:
		if len(c.activeDays()) == 0 {
			return daily
		}
		return c
	case Pattern:
		bits, ok := ParseBits(c.Pattern)
		if !ok || c.Anchor == nil || !anySet(bits) {
			return daily
		}
		return c
	default:
		return daily
	}
}

func (c Config) activeDays() []int {
	days := make([]int, 0, len(c.ActiveDays))
	for _, d := range c.ActiveDays {
		if d >= 0 && d <= 6 {
			days = append(days, d)
		}
	}
	return days
}

// nextEligibleAfter 从 today 的下一天开始向后扫描第一个可用日
func nextEligibleAfter(cfg Config, today time.Time) time.Time {
	limit := 7
	if cfg.Type == Pattern {
		bits, _ := ParseBits(cfg.Pattern)
		limit = 2 * len(bits)
	}

	for i := 1; i <= limit; i++ {
		candidate := today.AddDate(0, 0, i)
		if IsEligibleOn(cfg, candidate) {
			return candidate
		}
	}
	return today.AddDate(0, 0, 1)
}

// patternIndex 按日历日计算 date 相对 anchor 的日序号并归一化到 [0, n)。
// anchor 先换算到 date 的时区再取日期，数据库读回的时间可能带着进程本地时区。
func patternIndex(anchor, date time.Time, n int) int {
	ay, am, ad := anchor.In(date.Location()).Date()
	dy, dm, dd := date.Date()

	a := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	d := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	days := int(d.Sub(a).Hours() / 24)

	idx := days % n
	if idx < 0 {
		idx += n
	}
	return idx
}

func hasWeekday(days []int, wd time.Weekday) bool {
	for _, d := range days {
		if d == int(wd) {
			return true
		}
	}
	return false
}

func anySet(bits []bool) bool {
	for _, b := range bits {
		if b {
			return true
		}
	}
	return false
}

// String 便于日志输出
func (c Config) String() string {
	switch c.Type {
	case Weekdays:
		return fmt.Sprintf("WEEKDAYS(%v)", c.ActiveDays)
	case Pattern:
		return "PATTERN(" + strings.ReplaceAll(c.Pattern, " ", "") + ")"
	default:
		return "FIXED(" + c.Period + ")"
	}
}
