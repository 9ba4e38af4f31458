package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL needs. App satisfies it; tests
// can provide a lightweight stub.
type execIface interface {
	Execute(ctx context.Context, name string, args []string) error
}

// runREPL reads a line from scanner, treats the first token as a command and
// the rest as its arguments, and dispatches to a. Command errors are printed
// and the loop continues. It exits on EOF, on "exit" or "quit", or when ctx
// is cancelled.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("progres %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch cmd := parts[0]; cmd {
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			if err := a.Execute(ctx, cmd, parts[1:]); err != nil {
				printlnFn("error:", err)
			}
		}
	}
}
