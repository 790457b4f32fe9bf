package driver

import (
	"errors"
	"testing"
)

func TestParseVerdictBoundaries(t *testing.T) {
	cases := []struct {
		output string
		want   int64
	}{
		{"0\n", 0},
		{"-1\n", -1},
		{"42\n", 42},
		{"-9223372036854775808\n", -9223372036854775808},
		{"9223372036854775807\n", 9223372036854775807},
	}
	for _, tc := range cases {
		got, err := ParseVerdict([]byte(tc.output))
		if err != nil {
			t.Fatalf("ParseVerdict(%q) returned error: %v", tc.output, err)
		}
		if got != tc.want {
			t.Fatalf("ParseVerdict(%q) = %d, want %d", tc.output, got, tc.want)
		}
	}
}

func TestParseVerdictRejectsMalformedOutput(t *testing.T) {
	malformed := []string{
		"42",                      // missing newline
		"42\n\n",                  // extra newline
		"42 \n",                   // trailing space
		" 42\n",                   // leading space
		"007\n",                   // leading zeros
		"-0\n",                    // negative zero
		"+42\n",                   // explicit plus sign
		"-\n",                     // sign without digits
		"\n",                      // blank line
		"hello\n",                 // not a number
		"42\n43\n",                // second line
		"9223372036854775808\n",   // one past int64 max
		"-9223372036854775809\n",  // one past int64 min
		"18446744073709551615\n",  // uint64 max
	}
	for _, output := range malformed {
		if _, err := ParseVerdict([]byte(output)); !errors.Is(err, ErrMalformedVerdict) {
			t.Fatalf("ParseVerdict(%q) = %v, want ErrMalformedVerdict", output, err)
		}
	}
}

func TestParseVerdictEmptyOutput(t *testing.T) {
	if _, err := ParseVerdict(nil); !errors.Is(err, ErrNoVerdict) {
		t.Fatalf("ParseVerdict(nil) = %v, want ErrNoVerdict", err)
	}
}

func TestFormatVerdictRoundTrip(t *testing.T) {
	values := []int64{0, -1, 1, 42, -9223372036854775808, 9223372036854775807}
	for _, value := range values {
		got, err := ParseVerdict([]byte(FormatVerdict(value)))
		if err != nil {
			t.Fatalf("round trip %d: %v", value, err)
		}
		if got != value {
			t.Fatalf("round trip %d = %d", value, got)
		}
	}
}
