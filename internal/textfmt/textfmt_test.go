package textfmt

import "testing"

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "Plain", in: "Steve", want: "Steve"},
		{name: "ColorAndFormat", in: "&6&l[VIP]&r Steve", want: "[VIP] Steve"},
		{name: "SectionSign", in: "§c[Admin] ", want: "[Admin] "},
		{name: "HexRun", in: "&x&f&f&0&0&a&aRed", want: "Red"},
		{name: "BrokenHex", in: "&xAB", want: "AB"},
		{name: "UnknownCode", in: "&zfoo", want: "&zfoo"},
		{name: "TrailingAmpersand", in: "rock&", want: "rock&"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if got := Strip(test.in); got != test.want {
				t.Fatalf("Strip(%q) = %q, want %q", test.in, got, test.want)
			}
		})
	}
}

func TestCutKeepsCodesAndLimitsVisible(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "Short", in: "&aabc", max: 5, want: "&aabc"},
		{name: "Truncated", in: "&aab&bcdef", max: 3, want: "&aab&bc"},
		{name: "CodesAfterCutKeptUntilNextVisible", in: "abc&r", max: 3, want: "abc&r"},
		{name: "Zero", in: "abc", max: 0, want: ""},
		{name: "Unicode", in: "ěščř", max: 2, want: "ěš"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			got := Cut(test.in, test.max)
			if got != test.want {
				t.Fatalf("Cut(%q, %d) = %q, want %q", test.in, test.max, got, test.want)
			}
			if VisibleLen(got) > test.max {
				t.Fatalf("VisibleLen(%q) = %d, want <= %d", got, VisibleLen(got), test.max)
			}
		})
	}
}

func TestRecolor(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		keepFormats bool
		want        string
	}{
		{name: "ColorsReplaced", in: "&6[VIP]&r", keepFormats: true, want: "&7[VIP]&7"},
		{name: "FormatsKept", in: "&l&cBold", keepFormats: true, want: "&l&7Bold"},
		{name: "FormatsDropped", in: "&l&cBold", keepFormats: false, want: "&7Bold"},
		{name: "HexReplacedWhole", in: "&x&1&2&3&4&5&6Hex", keepFormats: true, want: "&7Hex"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if got := Recolor(test.in, "&7", test.keepFormats); got != test.want {
				t.Fatalf("Recolor(%q) = %q, want %q", test.in, got, test.want)
			}
		})
	}
}

func TestEnsureReset(t *testing.T) {
	if got := EnsureReset("&6[VIP] "); got != "&6[VIP] &r" {
		t.Fatalf("EnsureReset = %q, want %q", got, "&6[VIP] &r")
	}
	if got := EnsureReset("&6[VIP]&R"); got != "&6[VIP]&R" {
		t.Fatalf("EnsureReset on reset-terminated text = %q", got)
	}
	if got := EnsureReset(""); got != Reset {
		t.Fatalf("EnsureReset(\"\") = %q, want %q", got, Reset)
	}
}

func TestLastColor(t *testing.T) {
	c, ok := LastColor("&6&l[VIP] &c&r")
	if !ok || c != 'c' {
		t.Fatalf("LastColor = %q,%v, want 'c',true", c, ok)
	}
	if c.Name() != "red" {
		t.Fatalf("Name() = %q, want red", c.Name())
	}
	if _, ok := LastColor("&l&r plain"); ok {
		t.Fatal("LastColor found a colour in text without colour codes")
	}
}

func TestParseColor(t *testing.T) {
	for in, want := range map[string]Color{"&7": '7', "§e": 'e', "a": 'a', "Gold": '6'} {
		got, ok := ParseColor(in)
		if !ok || got != want {
			t.Fatalf("ParseColor(%q) = %q,%v, want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseColor("&z"); ok {
		t.Fatal("ParseColor accepted an unknown code")
	}
}

func TestTranslateAndVisiblyEmpty(t *testing.T) {
	if got := Translate("&6Gold &Lbold"); got != "§6Gold §lbold" {
		t.Fatalf("Translate = %q", got)
	}
	if !IsVisiblyEmpty("&6&l  &r") {
		t.Fatal("IsVisiblyEmpty = false for code-only text")
	}
	if got := Normalized("  &6[VIP] Gold "); got != "[vip] gold" {
		t.Fatalf("Normalized = %q", got)
	}
}
