package tabular

import (
	"strconv"
	"strings"
)

// Accepted header spellings per logical column, in priority order. Dataset
// vintages disagree on case and on the year suffix of a few columns.
var (
	UnitIDKeys   = []string{"UNITID", "unitid", "UnitID", "UNIT_ID"}
	CIPKeys      = []string{"CIPCODE", "cipcode", "CipCode", "CIP", "CIPCODE2020", "CIPCODE2010"}
	AwLevelKeys  = []string{"AWLEVEL", "awlevel", "AwLevel", "AW_LEVEL"}
	CountKeys    = []string{"CTOTALT", "ctotalt", "CTotalT", "CRACE24", "TOTAL"}
	NameKeys     = []string{"INSTNM", "instnm", "InstNm"}
	StateKeys    = []string{"STABBR", "stabbr", "StAbbr"}
	ControlKeys  = []string{"CONTROL", "control", "Control"}
	WebAddrKeys  = []string{"WEBADDR", "webaddr", "WebAddr"}
	CarnegieKeys = []string{"C21BASIC", "C18BASIC", "C15BASIC", "CCBASIC", "c21basic", "c18basic"}
)

// ParseCount coerces a count field to an integer. Blank or non-numeric
// values become 0. Decimal forms such as "12.0" are truncated. Negative
// values are returned as-is.
func ParseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// ParseOptionalInt parses s as an integer, reporting false for blank or
// non-numeric input.
func ParseOptionalInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
