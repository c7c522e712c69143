package reader

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var pdfDateRegex = regexp.MustCompile(
	`^D:(\d{4})(\d{2})?(\d{2})?(\d{2})?(\d{2})?(\d{2})?([-+Z])?(\d{2})?'?(\d{2})?'?$`,
)

// parseDate parses a PDF date string of the form D:YYYYMMDDHHmmSSOHH'mm'.
// All fields after the year are optional. The boolean is false when the
// string is not a PDF date.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if !strings.HasPrefix(s, "D:") {
		s = "D:" + s
	}

	m := pdfDateRegex.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	field := func(i, def int) int {
		if m[i] == "" {
			return def
		}
		v, _ := strconv.Atoi(m[i])
		return v
	}

	loc := time.UTC
	if sign := m[7]; sign == "+" || sign == "-" {
		offset := (field(8, 0)*60 + field(9, 0)) * 60
		if sign == "-" {
			offset = -offset
		}
		loc = time.FixedZone("", offset)
	}

	return time.Date(field(1, 0), time.Month(field(2, 1)), field(3, 1),
		field(4, 0), field(5, 0), field(6, 0), 0, loc), true
}
