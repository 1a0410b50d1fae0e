// Package fips cleans and validates county and state FIPS identifiers and
// merges them into canonical 5-digit county codes.
package fips

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// Sentinel errors returned by Clean and Normalize.
var (
	ErrEmpty       = eris.New("fips: data contains empty FIPS code values")
	ErrNonDigit    = eris.New("fips: data contains non-digit FIPS code values")
	ErrStateFormat = eris.New("fips: state FIPS not in a readable format; entry must be a column or a 2-digit state FIPS code")
	ErrLength      = eris.New("fips: FIPS code values violate length requirements; entries should be a 3-digit county code or a 5-digit state and county code")
)

var (
	// Anything that is not a Unicode letter or number, underscore included.
	nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	digits  = regexp.MustCompile(`^[0-9]*$`)
)

// Clean strips punctuation, whitespace and underscores from a raw code and
// requires what is left to be ASCII digits only. Letters and numbers from
// any script are kept, so "48é001" or a full-width digit fails the check.
func Clean(code string) (string, error) {
	if !utf8.ValidString(code) {
		return "", eris.Wrapf(ErrNonDigit, "fips: clean %q: invalid UTF-8", code)
	}
	c := nonWord.ReplaceAllString(code, "")
	if !digits.MatchString(c) {
		return "", eris.Wrapf(ErrNonDigit, "fips: clean %q", code)
	}
	return c, nil
}

// State supplies the state half of a county code: either one value per row
// (Column) or a single code for every row (Code).
type State struct {
	Column []string
	Code   string
}

// StateCode returns a State that applies one 2-digit code to every row.
func StateCode(code string) State { return State{Code: code} }

// StateColumn returns a State that reads the state code from each row.
func StateColumn(col []string) State { return State{Column: col} }

func (s State) empty() bool { return s.Column == nil && s.Code == "" }

// Normalize converts a column of county codes to 5-digit state+county codes.
// Codes that are already 5 digits pass through; 1-3 digit county codes are
// prefixed by the state. The output has the same order as the input.
func Normalize(counties []string, state State) ([]string, error) {
	if state.Column != nil && len(state.Column) != len(counties) {
		return nil, eris.Errorf("fips: state column has %d values, county column has %d", len(state.Column), len(counties))
	}

	out := make([]string, len(counties))
	needState := false
	for i, raw := range counties {
		if strings.TrimSpace(raw) == "" {
			return nil, eris.Wrapf(ErrEmpty, "fips: row %d", i)
		}
		c, err := Clean(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "fips: row %d", i)
		}
		if len(c) < 3 {
			c = zfill(c, 3)
		}
		if len(c) == 3 {
			needState = true
		}
		out[i] = c
	}

	if needState {
		states, err := resolveStates(state, len(out))
		if err != nil {
			return nil, err
		}
		for i, c := range out {
			out[i] = states[i] + c[len(c)-3:]
		}
	}

	for i, c := range out {
		c = zfill(c, 5)
		if len(c) != 5 {
			return nil, eris.Wrapf(ErrLength, "fips: row %d value %q", i, counties[i])
		}
		out[i] = c
	}
	return out, nil
}

// NormalizeOne is Normalize for a single code.
func NormalizeOne(county, state string) (string, error) {
	out, err := Normalize([]string{county}, StateCode(state))
	if err != nil {
		return "", err
	}
	return out[0], nil
}

func resolveStates(state State, n int) ([]string, error) {
	if state.empty() {
		return nil, eris.Wrap(ErrStateFormat, "fips: county codes need a state but none was given")
	}

	states := make([]string, n)
	if state.Column != nil {
		for i, raw := range state.Column {
			if strings.TrimSpace(raw) == "" {
				return nil, eris.Wrapf(ErrEmpty, "fips: state row %d", i)
			}
			s, err := Clean(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "fips: state row %d", i)
			}
			states[i] = zfill(s, 2)
		}
		return states, nil
	}

	s, err := Clean(state.Code)
	if err != nil {
		return nil, err
	}
	if len(s) != 2 {
		return nil, eris.Wrapf(ErrStateFormat, "fips: state %q", state.Code)
	}
	for i := range states {
		states[i] = s
	}
	return states, nil
}

// Split returns the state and county halves of a 5-digit code.
func Split(code string) (state, county string) {
	if len(code) != 5 {
		return "", ""
	}
	return code[:2], code[2:]
}

func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
