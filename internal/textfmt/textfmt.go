// Package textfmt handles legacy formatted label text: '&' (or '§') followed by a
// colour digit 0-9a-f, a format letter k-o, the reset letter r, or the 14 rune
// hex form &x&R&R&G&G&B&B. Codes are invisible and never count toward lengths.
package textfmt

import (
	"strings"
	"unicode"
)

// Reset is the explicit format reset code.
const Reset = "&r"

const (
	colorChars  = "0123456789abcdef"
	formatChars = "klmno"
	hexRunLen   = 14
)

// Color is a named legacy colour, identified by its code digit.
type Color byte

var colorNames = map[Color]string{
	'0': "black",
	'1': "dark_blue",
	'2': "dark_green",
	'3': "dark_aqua",
	'4': "dark_red",
	'5': "dark_purple",
	'6': "gold",
	'7': "gray",
	'8': "dark_gray",
	'9': "blue",
	'a': "green",
	'b': "aqua",
	'c': "red",
	'd': "light_purple",
	'e': "yellow",
	'f': "white",
}

// White is the neutral name colour.
const White Color = 'f'

// Name returns the lower snake case colour name, or "" for an unknown code.
func (c Color) Name() string {
	return colorNames[c]
}

// Code returns the '&' form of the colour.
func (c Color) Code() string {
	return "&" + string(rune(c))
}

// Normalize rewrites section-sign codes into the ampersand form.
func Normalize(s string) string {
	return strings.ReplaceAll(s, "§", "&")
}

// codeLen reports the length in runes of the format code starting at r[i], or 0.
func codeLen(r []rune, i int) int {
	if r[i] != '&' || i+1 >= len(r) {
		return 0
	}
	n := unicode.ToLower(r[i+1])
	switch {
	case n == 'x':
		if i+hexRunLen <= len(r) && isHexRun(r[i+2:i+hexRunLen]) {
			return hexRunLen
		}
		return 2
	case strings.ContainsRune(colorChars, n), strings.ContainsRune(formatChars, n), n == 'r':
		return 2
	}
	return 0
}

func isHexRun(r []rune) bool {
	for j := 0; j+1 < len(r); j += 2 {
		if r[j] != '&' || !strings.ContainsRune(colorChars, unicode.ToLower(r[j+1])) {
			return false
		}
	}
	return true
}

// Strip removes every format code.
func Strip(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(Normalize(s))
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(r); i++ {
		if n := codeLen(r, i); n > 0 {
			i += n - 1
			continue
		}
		b.WriteRune(r[i])
	}
	return b.String()
}

// VisibleLen counts the runes left after stripping format codes.
func VisibleLen(s string) int {
	return len([]rune(Strip(s)))
}

// IsVisiblyEmpty reports whether s renders as nothing but whitespace.
func IsVisiblyEmpty(s string) bool {
	return strings.TrimSpace(Strip(s)) == ""
}

// Cut truncates s to at most max visible runes. Codes before the cut point are
// copied verbatim and do not count toward max.
func Cut(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Normalize(s))
	var b strings.Builder
	b.Grow(len(s))
	visible := 0
	for i := 0; i < len(r); i++ {
		if n := codeLen(r, i); n > 0 {
			b.WriteString(string(r[i : i+n]))
			i += n - 1
			continue
		}
		if visible >= max {
			break
		}
		b.WriteRune(r[i])
		visible++
	}
	return b.String()
}

// Recolor replaces every colour code (hex runs and &r included) with target.
// Format codes k-o survive only when keepFormats is set.
func Recolor(s, target string, keepFormats bool) string {
	if target == "" {
		target = "&7"
	}
	r := []rune(Normalize(s))
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(r); i++ {
		n := codeLen(r, i)
		if n == 0 {
			b.WriteRune(r[i])
			continue
		}
		code := unicode.ToLower(r[i+1])
		switch {
		case strings.ContainsRune(formatChars, code):
			if keepFormats {
				b.WriteRune('&')
				b.WriteRune(code)
			}
		default:
			b.WriteString(target)
		}
		i += n - 1
	}
	return b.String()
}

// EnsureReset guarantees s ends with an explicit reset so its formatting cannot
// bleed into whatever follows.
func EnsureReset(s string) string {
	s = Normalize(s)
	if strings.HasSuffix(strings.ToLower(s), Reset) {
		return s
	}
	return s + Reset
}

// LastColor returns the last plain colour code present in s.
func LastColor(s string) (Color, bool) {
	r := []rune(Normalize(s))
	var last Color
	found := false
	for i := 0; i < len(r); i++ {
		n := codeLen(r, i)
		if n == 0 {
			continue
		}
		if n == 2 {
			if c := unicode.ToLower(r[i+1]); strings.ContainsRune(colorChars, c) {
				last = Color(c)
				found = true
			}
		}
		i += n - 1
	}
	return last, found
}

// ParseColor accepts "&7", "§7", "7" or a colour name such as "gray".
func ParseColor(s string) (Color, bool) {
	s = strings.ToLower(strings.TrimSpace(Normalize(s)))
	if s == "" {
		return 0, false
	}
	if c, ok := LastColor(s); ok && strings.HasPrefix(s, "&") {
		return c, true
	}
	if len(s) == 1 && strings.Contains(colorChars, s) {
		return Color(s[0]), true
	}
	for c, name := range colorNames {
		if name == s {
			return c, true
		}
	}
	return 0, false
}

// Translate converts '&' codes into the '§' wire form with lower case code letters.
func Translate(s string) string {
	r := []rune(s)
	for i := 0; i+1 < len(r); i++ {
		if r[i] == '&' && strings.ContainsRune("0123456789abcdefklmnorx", unicode.ToLower(r[i+1])) {
			r[i] = '§'
			r[i+1] = unicode.ToLower(r[i+1])
		}
	}
	return string(r)
}

// Normalized is the comparison form used for metric values and patterns:
// codes stripped, trimmed and lower cased.
func Normalized(s string) string {
	return strings.ToLower(strings.TrimSpace(Strip(s)))
}
