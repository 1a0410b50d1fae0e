package fips

import (
	"sort"
	"strings"
)

// StateCodes maps state abbreviation to 2-digit FIPS code for all 50 states + DC.
var StateCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56",
}

var abbrByCode map[string]string

func init() {
	abbrByCode = make(map[string]string, len(StateCodes))
	for abbr, code := range StateCodes {
		abbrByCode[code] = abbr
	}
}

// StateFIPS resolves a state abbreviation ("TX") or a numeric code ("48", "6")
// to its 2-digit FIPS code.
func StateFIPS(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if code, ok := StateCodes[strings.ToUpper(s)]; ok {
		return code, true
	}
	c, err := Clean(s)
	if err != nil || c == "" || len(c) > 2 {
		return "", false
	}
	c = zfill(c, 2)
	if _, ok := abbrByCode[c]; !ok {
		return "", false
	}
	return c, true
}

// StateAbbr returns the state abbreviation for a 2-digit FIPS code.
func StateAbbr(code string) (string, bool) {
	abbr, ok := abbrByCode[code]
	return abbr, ok
}

// AllStateFIPS returns a sorted list of all state FIPS codes.
func AllStateFIPS() []string {
	codes := make([]string, 0, len(StateCodes))
	for _, code := range StateCodes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
