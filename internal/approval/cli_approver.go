package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// CLIApprover prompts for y/n approvals on a terminal.
type CLIApprover struct {
	in  *bufio.Reader
	out io.Writer
}

func NewCLIApprover(in io.Reader, out io.Writer) *CLIApprover {
	return &CLIApprover{
		in:  bufio.NewReader(in),
		out: out,
	}
}

func (a *CLIApprover) RequestApproval(_ context.Context, req Request) (Decision, error) {
	if _, err := fmt.Fprint(a.out, FormatPrompt(req)); err != nil {
		return Denied, err
	}

	answer, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || answer == "") {
		return Denied, err
	}
	if Affirmative(answer) {
		return Approved, nil
	}
	return Denied, nil
}

// Affirmative reports whether answer is an English or Russian yes.
func Affirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "д", "да":
		return true
	default:
		return false
	}
}
