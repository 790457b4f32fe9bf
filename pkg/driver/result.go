package driver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Verdict parsing enforces the runner's output contract: a compiled test
// program reports exactly one line holding the signed decimal rendering of
// its 64-bit result. Anything looser would let a runner truncated to a
// 32-bit host width slip through unnoticed.

var (
	ErrNoVerdict        = errors.New("verdict: empty output")
	ErrMalformedVerdict = errors.New("verdict: malformed output")
)

// ParseVerdict extracts the 64-bit result from captured runner output.
// The output must be `<decimal>\n` and nothing else: no leading zeros,
// no `-0`, no surrounding whitespace, no second line.
func ParseVerdict(output []byte) (int64, error) {
	if len(output) == 0 {
		return 0, ErrNoVerdict
	}
	text := string(output)
	if !strings.HasSuffix(text, "\n") {
		return 0, fmt.Errorf("%w: missing trailing newline in %q", ErrMalformedVerdict, text)
	}
	line := text[:len(text)-1]
	if strings.ContainsAny(line, "\n\r") {
		return 0, fmt.Errorf("%w: expected a single line, got %q", ErrMalformedVerdict, text)
	}
	digits := line
	if strings.HasPrefix(digits, "-") {
		digits = digits[1:]
	}
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedVerdict, line)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: unexpected character %q in %q", ErrMalformedVerdict, r, line)
		}
	}
	if len(digits) > 1 && digits[0] == '0' {
		return 0, fmt.Errorf("%w: leading zeros in %q", ErrMalformedVerdict, line)
	}
	if line == "-0" {
		return 0, fmt.Errorf("%w: negative zero in %q", ErrMalformedVerdict, line)
	}
	value, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q does not fit in 64 bits", ErrMalformedVerdict, line)
	}
	return value, nil
}

// FormatVerdict renders a result the way the runner prints it.
func FormatVerdict(value int64) string {
	return strconv.FormatInt(value, 10) + "\n"
}
