package probe

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

var versionRe = regexp.MustCompile(`\d+(?:\.\d+)+`)

// ParseVersion returns the first dotted number found in s, e.g. "3.28.1" from
// "cmake version 3.28.1". It returns "" when there is none.
func ParseVersion(s string) string {
	return versionRe.FindString(s)
}

// AtLeast reports whether version have is not older than min. An empty min
// accepts anything.
func AtLeast(have, min string) bool {
	if min == "" {
		return true
	}
	return Compare(have, min) >= 0
}

// Compare orders two version strings. Semver-shaped inputs (with or without
// the leading "v") use semver precedence; anything else falls back to
// comparing digit runs by value and other runs bytewise, the way GNU
// strverscmp does.
func Compare(a, b string) int {
	va, vb := canonical(a), canonical(b)
	if semver.IsValid(va) && semver.IsValid(vb) {
		return semver.Compare(va, vb)
	}
	return compareSegments(strings.TrimPrefix(a, "v"), strings.TrimPrefix(b, "v"))
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func compareSegments(a, b string) int {
	for a != "" || b != "" {
		var sa, sb string
		sa, a = nextSegment(a)
		sb, b = nextSegment(b)
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

// nextSegment splits off the leading run of digits or non-digits.
func nextSegment(s string) (seg, rest string) {
	if s == "" {
		return "", ""
	}
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func compareSegment(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}
	if isDigit(a[0]) && isDigit(b[0]) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
