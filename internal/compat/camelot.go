package compat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Mode is the Camelot letter: A for minor keys, B for major keys.
type Mode byte

const (
	ModeMinor Mode = 'A'
	ModeMajor Mode = 'B'
)

const wheelSize = 12

var camelotPattern = regexp.MustCompile(`^\d{1,2}[AB]$`)

// Key is a parsed Camelot code.
type Key struct {
	Number int
	Mode   Mode
}

// ParseCamelot parses codes such as "8A" or "12B". Surrounding whitespace and
// a lowercase letter are tolerated; numbers outside 1-12 are rejected.
func ParseCamelot(code string) (Key, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !camelotPattern.MatchString(normalized) {
		return Key{}, fmt.Errorf("camelot code %q: expected 1-12 followed by A or B", code)
	}
	number, err := strconv.Atoi(normalized[:len(normalized)-1])
	if err != nil {
		return Key{}, fmt.Errorf("camelot code %q: %w", code, err)
	}
	if number < 1 || number > wheelSize {
		return Key{}, fmt.Errorf("camelot code %q: number out of range", code)
	}
	return Key{Number: number, Mode: Mode(normalized[len(normalized)-1])}, nil
}

// ValidCamelot reports whether code parses as a Camelot key.
func ValidCamelot(code string) bool {
	_, err := ParseCamelot(code)
	return err == nil
}

func (k Key) String() string {
	return strconv.Itoa(k.Number) + string(k.Mode)
}

// distance is the circular distance between two wheel positions.
func distance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if wheelSize-d < d {
		return wheelSize - d
	}
	return d
}

// boostTarget is the wheel position reached by the energy-boost move from n.
func boostTarget(n int) int {
	return ((n + 6) % wheelSize) + 1
}
