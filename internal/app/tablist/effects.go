package tablist

import (
	"strings"

	"rosterd/internal/textfmt"
)

// Marquee scrolls every line of text by index visible characters inside a
// window of at least minWidth, wrapping around through one separating space.
// Format codes are dropped.
func Marquee(text string, index, minWidth int) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		plain := []rune(textfmt.Strip(line))
		width := max(minWidth, len(plain))
		for len(plain) < width+1 {
			plain = append(plain, ' ')
		}
		n := len(plain)
		off := ((index % n) + n) % n
		out := make([]rune, width)
		for j := range out {
			out[j] = plain[(off+j)%n]
		}
		lines[i] = string(out)
	}
	return strings.Join(lines, "\n")
}

// RainbowText colours every visible character of text with the palette, starting
// at offset and cycling. Existing format codes are dropped.
func RainbowText(text string, palette []string, offset int) string {
	if len(palette) == 0 {
		palette = []string{"&f"}
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		var b strings.Builder
		idx := offset
		for _, r := range textfmt.Strip(line) {
			b.WriteString(palette[((idx%len(palette))+len(palette))%len(palette)])
			b.WriteRune(r)
			idx++
		}
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

// PulseText prefixes every line of text with color.
func PulseText(text, color string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = color + line
	}
	return strings.Join(lines, "\n")
}
