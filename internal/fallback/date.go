package fallback

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The item pages publish update times as local Pacific time with no
// zone marker, e.g. "8 Mar, 2021 @ 3:31pm" or "15 Nov @ 2:30pm" (year
// omitted within the current year). The daylight-saving boundary is
// approximated by month and day-of-month since the page gives nothing
// better to go on.
const (
	standardOffset = -8 * 60 * 60
	daylightOffset = -7 * 60 * 60
)

var pageDateExpr = regexp.MustCompile(
	`(?i)^(\d{1,2})\s+([A-Za-z]{3,9})(?:,\s*(\d{4}))?\s*@\s*(\d{1,2}):(\d{2})\s*(am|pm)$`,
)

var monthsByName = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func monthFromName(name string) (time.Month, bool) {
	key := strings.ToLower(name)
	if len(key) > 3 {
		key = key[:3]
	}
	m, ok := monthsByName[key]
	return m, ok
}

func daylightSaving(month time.Month, day int) bool {
	switch month {
	case time.April, time.May, time.June, time.July, time.August, time.September:
		return true
	case time.October:
		return true
	case time.March:
		// transition happens the second Sunday, day 8 is the
		// earliest it can land on
		return day >= 8
	case time.November:
		// first Sunday, so only the first week can still be daylight
		return day <= 7
	default:
		return false
	}
}

func pacificZone(month time.Month, day int) *time.Location {
	if daylightSaving(month, day) {
		return time.FixedZone("PDT", daylightOffset)
	}
	return time.FixedZone("PST", standardOffset)
}

// ParsePageTime resolves a free-text page date expression to epoch
// seconds. `now` supplies the year when the expression omits it.
// Returns false for anything that does not match the page format.
func ParsePageTime(s string, now time.Time) (int64, bool) {
	groups := pageDateExpr.FindStringSubmatch(strings.TrimSpace(s))
	if groups == nil {
		return 0, false
	}

	day, _ := strconv.Atoi(groups[1])
	month, ok := monthFromName(groups[2])
	if !ok || day < 1 || day > 31 {
		return 0, false
	}

	year := now.Year()
	if groups[3] != "" {
		year, _ = strconv.Atoi(groups[3])
	}

	hour, _ := strconv.Atoi(groups[4])
	minute, _ := strconv.Atoi(groups[5])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, false
	}
	if hour == 12 {
		hour = 0
	}
	if strings.EqualFold(groups[6], "pm") {
		hour += 12
	}

	t := time.Date(year, month, day, hour, minute, 0, 0, pacificZone(month, day))
	return t.Unix(), true
}
