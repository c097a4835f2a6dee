// Package semver provides the version comparison and coercion routines shared
// by release resolution and upgrade evaluation. Upstream tags and node-reported
// versions are both messy, so everything here is tolerant by construction:
// components are compared as integers, missing components count as zero, and
// trailing garbage after the numeric part of a component is ignored.
package semver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	gosemver "github.com/coreos/go-semver/semver"
)

// tripleExpr matches a strict MAJOR.MINOR.PATCH triple with an optional
// leading "v". Tags that do not contain such a triple are unusable for
// release resolution.
var tripleExpr = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)

// looseExpr matches a version with optional minor and patch components, for
// coercing node-reported versions like "1.15" or "1.15.2-abcdef".
var looseExpr = regexp.MustCompile(`v?(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// Compare compares two dotted version strings component-wise as integers,
// major first. A missing trailing component is treated as zero, so
// Compare("1.2", "1.2.0") == 0. Non-numeric trailing characters within a
// component are ignored ("2-rc1" compares as 2). A leading "v" is tolerated.
// The result is negative if a < b, zero if equal, positive if a > b.
func Compare(a, b string) int {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		var av, bv int64
		if i < len(as) {
			av = numeric(as[i])
		}
		if i < len(bs) {
			bv = numeric(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}

	return 0
}

// ExtractTriple returns the first strict MAJOR.MINOR.PATCH triple contained
// in the given string, without any leading "v". The second return value is
// false if the string contains no such triple.
func ExtractTriple(s string) (string, bool) {
	match := tripleExpr.FindStringSubmatch(s)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Coerce normalizes an arbitrary version string into a semantic version,
// filling missing minor and patch components with zero. It returns an error
// if the string contains no numeric version at all.
func Coerce(s string) (*gosemver.Version, error) {
	match := looseExpr.FindStringSubmatch(s)
	if match == nil {
		return nil, fmt.Errorf("no numeric version in %q", s)
	}

	ver := &gosemver.Version{}
	ver.Major = mustInt(match[1])
	if match[2] != "" {
		ver.Minor = mustInt(match[2])
	}
	if match[3] != "" {
		ver.Patch = mustInt(match[3])
	}

	return ver, nil
}

// NextPatch returns the version with its patch component incremented by one,
// discarding any pre-release or metadata identifiers.
func NextPatch(v gosemver.Version) gosemver.Version {
	return gosemver.Version{
		Major: v.Major,
		Minor: v.Minor,
		Patch: v.Patch + 1,
	}
}

// numeric parses the leading decimal digits of a version component, so that
// components like "2-rc1" order by their numeric part. A component with no
// leading digits counts as zero.
func numeric(component string) int64 {
	end := 0
	for end < len(component) && component[end] >= '0' && component[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	value, err := strconv.ParseInt(component[:end], 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// mustInt converts a regexp-captured digit group. The expression guarantees
// the group is all digits.
func mustInt(digits string) int64 {
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("non-numeric capture %q: %v", digits, err))
	}
	return value
}
