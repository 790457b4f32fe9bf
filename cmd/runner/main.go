// Command runner is the native entry shim for compiled test programs: it
// calls the externally linked entry point, prints the 64-bit result in
// decimal, and exits 0. Arguments are accepted but unused.
//
// The artifact defining our_code_starts_here is supplied at link time:
//
//	CGO_LDFLAGS=/path/to/artifact.o go build ./cmd/runner
package main

/*
#include <stdint.h>

extern int64_t our_code_starts_here(void) __asm__("our_code_starts_here");
*/
import "C"

import (
	"fmt"
	"os"
)

func main() {
	result := int64(C.our_code_starts_here())
	fmt.Fprintf(os.Stdout, "%d\n", result)
}
