// Package shim emits the C entry stub that bridges compiler output to a
// process exit: it calls the artifact's entry symbol, prints the 64-bit
// result in decimal, and returns 0. The stub is what a system C compiler
// links against the artifact when the cgo runner is not used.
package shim

import (
	"fmt"
	"io"
	"strings"
)

// DefaultSymbol is the entry symbol compiled artifacts are expected to
// export: a zero-argument function returning int64.
const DefaultSymbol = "our_code_starts_here"

// Dialect selects the external-linkage declaration style.
type Dialect int

const (
	// DialectGNU pins the link-time name with an asm label, so the
	// declaration resolves to exactly the symbol the compiler emitted.
	DialectGNU Dialect = iota
	// DialectMSVC uses a plain extern declaration; MSVC does not decorate
	// cdecl function names on x64.
	DialectMSVC
)

// Options configures stub generation. The zero value produces the GNU stub
// for DefaultSymbol.
type Options struct {
	Symbol  string
	Dialect Dialect
}

type emitter struct {
	b strings.Builder
}

func (e *emitter) line(s string) {
	e.b.WriteString(s)
	e.b.WriteByte('\n')
}

func (e *emitter) linef(format string, args ...any) {
	fmt.Fprintf(&e.b, format, args...)
	e.b.WriteByte('\n')
}

func (e *emitter) blank() {
	e.b.WriteByte('\n')
}

// Stub returns the C source of the entry stub.
//
// PRId64 keeps the printf exact on hosts whose native int is narrower than
// 64 bits; a bare %d or %ld would truncate there.
func Stub(opts Options) string {
	symbol := strings.TrimSpace(opts.Symbol)
	if symbol == "" {
		symbol = DefaultSymbol
	}

	var e emitter
	e.line("#include <stdio.h>")
	e.line("#include <stdint.h>")
	e.line("#include <inttypes.h>")
	e.blank()
	switch opts.Dialect {
	case DialectMSVC:
		e.linef("extern int64_t %s();", symbol)
	default:
		e.linef("extern int64_t %s() asm(%q);", symbol, symbol)
	}
	e.blank()
	e.line("int main(int argc, char** argv) {")
	e.linef("  int64_t result = %s();", symbol)
	e.line(`  printf("%" PRId64 "\n", result);`)
	e.line("  return 0;")
	e.line("}")
	return e.b.String()
}

// WriteStub writes the stub source to w.
func WriteStub(w io.Writer, opts Options) error {
	_, err := io.WriteString(w, Stub(opts))
	return err
}
