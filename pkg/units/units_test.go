package units

import "testing"

func TestParse(t *testing.T) {
	test := func(literal string, wantScale Scale, wantSignificand float64) {
		got, err := Parse(literal)
		if err != nil {
			t.Fatalf("unexpected error parsing %q: %v", literal, err)
		}
		if got.Scale != wantScale || got.Significand != wantSignificand {
			t.Fatalf("Parse(%q) = %+v, want {Scale:%v Significand:%v}", literal, got, wantScale, wantSignificand)
		}
	}

	t.Run("bare milli is not mega", func(t *testing.T) { test("10m", Milli, 10) })
	t.Run("meg is mega", func(t *testing.T) { test("10meg", Mega, 10) })
	t.Run("kilo with cosmetic unit suffix", func(t *testing.T) { test("10kOhm", Kilo, 10) })
	t.Run("no suffix", func(t *testing.T) { test("4.7", Unit, 4.7) })
	t.Run("scientific notation", func(t *testing.T) { test("1e-3", Unit, 1e-3) })
}

func TestEqualAcrossSuffixes(t *testing.T) {
	cases := [][2]string{
		{"2.2u", "2.2µ"},
		{"2.2u", "2200n"},
		{"1meg", "1000k"},
	}

	for _, pair := range cases {
		a, err := Parse(pair[0])
		if err != nil {
			t.Fatalf("unexpected error parsing %q: %v", pair[0], err)
		}
		b, err := Parse(pair[1])
		if err != nil {
			t.Fatalf("unexpected error parsing %q: %v", pair[1], err)
		}
		if !a.Equal(b) {
			t.Fatalf("expected %q and %q to be equal, got %v and %v", pair[0], pair[1], a.Float(), b.Float())
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, literal := range []string{"", "abc", "meg10"} {
		if _, err := Parse(literal); err == nil {
			t.Fatalf("expected error parsing %q, got none", literal)
		}
	}
}
