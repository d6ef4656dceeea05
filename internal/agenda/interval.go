package agenda

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts 5 field expressions, an optional leading seconds field and
// descriptors such as @daily or @every 1h30m.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var intervalUnits = map[string]time.Duration{
	"ms":          time.Millisecond,
	"millisecond": time.Millisecond,
	"s":           time.Second,
	"sec":         time.Second,
	"second":      time.Second,
	"m":           time.Minute,
	"min":         time.Minute,
	"minute":      time.Minute,
	"h":           time.Hour,
	"hour":        time.Hour,
	"d":           24 * time.Hour,
	"day":         24 * time.Hour,
	"w":           7 * 24 * time.Hour,
	"week":        7 * 24 * time.Hour,
	"month":       30 * 24 * time.Hour,
	"year":        365 * 24 * time.Hour,
}

var numberWords = map[string]float64{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "fifteen": 15, "twenty": 20, "thirty": 30,
}

// ParseInterval parses a repeat interval. It accepts Go durations ("90s"),
// human intervals ("5 minutes", "one hour and 30 minutes") and cron
// expressions ("0 */2 * * *", "@daily"). timezone only applies to cron
// expressions.
func ParseInterval(interval, timezone string) (cron.Schedule, error) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return nil, fmt.Errorf("%w: empty interval", ErrInvalidInterval)
	}

	if d, err := ParseDuration(interval); err == nil {
		if d < time.Second {
			return nil, fmt.Errorf("%w: %q is shorter than one second", ErrInvalidInterval, interval)
		}
		return cron.Every(d), nil
	}

	expr := interval
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInterval, timezone)
		}
		expr = "CRON_TZ=" + timezone + " " + interval
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidInterval, interval, err)
	}

	return schedule, nil
}

// ParseDuration parses a Go duration or a human interval such as "3 days" or
// "one hour and 15 minutes".
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return 0, fmt.Errorf("%w: empty duration", ErrInvalidInterval)
	}

	if d, err := time.ParseDuration(value); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidInterval, value)
		}
		return d, nil
	}

	return parseHumanDuration(value)
}

func parseHumanDuration(value string) (time.Duration, error) {
	replacer := strings.NewReplacer(",", " ", " and ", " ")
	fields := strings.Fields(replacer.Replace(value))
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, value)
	}

	var total time.Duration
	amount := -1.0

	for _, field := range fields {
		if n, ok := parseAmount(field); ok {
			if amount >= 0 {
				return 0, fmt.Errorf("%w: %q has two amounts in a row", ErrInvalidInterval, value)
			}
			amount = n
			continue
		}

		unit, ok := lookupUnit(field)
		if !ok {
			return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidInterval, field)
		}

		// a bare unit ("minute") counts as one
		if amount < 0 {
			amount = 1
		}
		total += time.Duration(amount * float64(unit))
		amount = -1
	}

	if amount >= 0 {
		return 0, fmt.Errorf("%w: %q is missing a unit", ErrInvalidInterval, value)
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidInterval, value)
	}

	return total, nil
}

func parseAmount(field string) (float64, bool) {
	if n, ok := numberWords[field]; ok {
		return n, true
	}
	n, err := strconv.ParseFloat(field, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func lookupUnit(field string) (time.Duration, bool) {
	if unit, ok := intervalUnits[field]; ok {
		return unit, true
	}
	if strings.HasSuffix(field, "s") {
		unit, ok := intervalUnits[strings.TrimSuffix(field, "s")]
		return unit, ok
	}
	return 0, false
}

// ParseWhen resolves a schedule time relative to now. It accepts "now",
// RFC3339 timestamps, durations and "in <interval>".
func ParseWhen(when string, now time.Time) (time.Time, error) {
	when = strings.TrimSpace(when)
	if when == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidWhen)
	}

	if strings.EqualFold(when, "now") {
		return now, nil
	}

	if t, err := time.Parse(time.RFC3339, when); err == nil {
		return t.UTC(), nil
	}

	relative := strings.TrimPrefix(strings.ToLower(when), "in ")
	d, err := ParseDuration(relative)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWhen, when)
	}

	return now.Add(d), nil
}
