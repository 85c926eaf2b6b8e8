// File: cmd/mdssboot/confirm.go
// Brief: Confirmation prompt for destructive commands.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

func stdinIsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirmAction asks the user to type "yes". Approved short-circuits
// the prompt (--yes); a non-TTY stdin refuses instead of hanging.
func confirmAction(ctx context.Context, in io.Reader, out io.Writer, approved bool, prompt string) error {
	if approved {
		return nil
	}
	if !stdinIsTTY() {
		return errors.New("refusing to proceed without confirmation; rerun with --yes")
	}
	fmt.Fprint(out, strings.TrimSpace(prompt)+" ")

	reader := bufio.NewReader(in)
	type readResult struct {
		line string
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := reader.ReadString('\n')
		ch <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return ctx.Err()
	case res := <-ch:
		if res.err != nil && !errors.Is(res.err, io.EOF) {
			return res.err
		}
		if !strings.EqualFold(strings.TrimSpace(res.line), "yes") {
			return errors.New("aborted")
		}
		return nil
	}
}
