package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout     = "02/01/2006"
	DateTimeLayout = "02/01/2006 15:04"
)

var (
	dateRegex     = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	timeRegex     = regexp.MustCompile(`^\d{2}:\d{2}$`)
	dateTimeRegex = regexp.MustCompile(`^\d{2}/\d{2}/\d{4} \d{2}:\d{2}$`)
)

// IsValidDate checks DD/MM/YYYY and that the day exists in the calendar.
func IsValidDate(s string) bool {
	if !dateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// IsValidTime checks HH:MM with hour 0-23 and minute 0-59.
func IsValidTime(s string) bool {
	if !timeRegex.MatchString(s) {
		return false
	}
	hour, _ := strconv.Atoi(s[:2])
	minute, _ := strconv.Atoi(s[3:])
	return hour <= 23 && minute <= 59
}

// IsValidDateTime checks DD/MM/YYYY HH:MM against the calendar and the clock.
func IsValidDateTime(s string) bool {
	if !dateTimeRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateTimeLayout, s)
	return err == nil
}

// ParseDate parses a day/month/year date. It is lenient about zero padding
// ("5/3/2024") because search input is typed by hand, but still rejects
// dates that do not exist.
func ParseDate(s string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	if year < 1 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}
