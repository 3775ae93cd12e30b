package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/saturn-platform/opsclaw/internal/approval"
	"github.com/saturn-platform/opsclaw/internal/assistant"
	"github.com/saturn-platform/opsclaw/internal/executor"
)

const defaultReplPrompt = "ops> "

const replHelp = `Slash commands:
  /help   show this help and the supported actions
  /reset  forget the conversation so far
  /quit   leave (also /exit)`

func newReplCmd() *cobra.Command {
	var noModel bool

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive operations session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{noModel: noModel})
			if err != nil {
				return err
			}
			defer a.Close()

			var channel promptChannel
			if rl, err := newReadlinePromptChannel(cmd.InOrStdin(), cmd.OutOrStdout(), cfg.HistoryPath()); err == nil {
				defer rl.Close()
				channel = rl
			} else {
				channel = newStdioPromptChannel(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout())
			}

			asst := a.assistant(channelApprover{channel: channel})
			return runPromptLoop(cmd.Context(), asst, channel)
		},
	}

	cmd.Flags().BoolVar(&noModel, "no-model", false, "Parse with the keyword parser only")

	return cmd
}

type promptChannel interface {
	Read(ctx context.Context) (string, error)
	// Ask shows a one-off prompt and reads the answer.
	Ask(ctx context.Context, prompt string) (string, error)
	Write(ctx context.Context, text string) error
	WriteMeta(ctx context.Context, text string) error
}

// channelApprover asks for confirmation on the same channel the operator
// types instructions into.
type channelApprover struct {
	channel promptChannel
}

func (a channelApprover) RequestApproval(ctx context.Context, req approval.Request) (approval.Decision, error) {
	answer, err := a.channel.Ask(ctx, approval.FormatPrompt(req))
	if err != nil {
		return approval.Denied, err
	}
	if approval.Affirmative(answer) {
		return approval.Approved, nil
	}
	return approval.Denied, nil
}

type readlinePromptChannel struct {
	rl  *readline.Instance
	out io.Writer
}

func newReadlinePromptChannel(in io.Reader, out io.Writer, historyPath string) (*readlinePromptChannel, error) {
	stdin, ok := in.(io.ReadCloser)
	if !ok {
		return nil, fmt.Errorf("stdin is not read-closer")
	}
	inFile, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(inFile.Fd())) {
		return nil, fmt.Errorf("stdin is not terminal")
	}
	outFile, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(outFile.Fd())) {
		return nil, fmt.Errorf("stdout is not terminal")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          defaultReplPrompt,
		HistoryFile:     historyPath,
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           stdin,
		Stdout:          out,
		Stderr:          out,
	})
	if err != nil {
		return nil, err
	}
	return &readlinePromptChannel{rl: rl, out: out}, nil
}

func (c *readlinePromptChannel) Read(_ context.Context) (string, error) {
	line, err := c.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	return line, nil
}

func (c *readlinePromptChannel) Ask(ctx context.Context, prompt string) (string, error) {
	// Confirmation answers stay out of the instruction history.
	c.rl.SetPrompt(prompt)
	c.rl.HistoryDisable()
	defer func() {
		c.rl.HistoryEnable()
		c.rl.SetPrompt(defaultReplPrompt)
	}()
	return c.Read(ctx)
}

func (c *readlinePromptChannel) Write(_ context.Context, text string) error {
	_, err := fmt.Fprintf(c.out, "opsclaw> %s\n\n", text)
	return err
}

func (c *readlinePromptChannel) WriteMeta(_ context.Context, text string) error {
	_, err := fmt.Fprintf(c.out, "%s\n", text)
	return err
}

func (c *readlinePromptChannel) Close() error {
	return c.rl.Close()
}

type stdioPromptChannel struct {
	in     *bufio.Reader
	out    io.Writer
	prompt string
}

func newStdioPromptChannel(in *bufio.Reader, out io.Writer) *stdioPromptChannel {
	return &stdioPromptChannel{
		in:     in,
		out:    out,
		prompt: defaultReplPrompt,
	}
}

func (c *stdioPromptChannel) Read(ctx context.Context) (string, error) {
	return c.Ask(ctx, c.prompt)
}

func (c *stdioPromptChannel) Ask(_ context.Context, prompt string) (string, error) {
	if _, err := fmt.Fprint(c.out, prompt); err != nil {
		return "", err
	}
	line, err := c.in.ReadString('\n')
	if err != nil {
		if len(line) > 0 {
			return line, nil
		}
		return "", err
	}
	return line, nil
}

func (c *stdioPromptChannel) Write(_ context.Context, text string) error {
	_, err := fmt.Fprintf(c.out, "opsclaw> %s\n\n", text)
	return err
}

func (c *stdioPromptChannel) WriteMeta(_ context.Context, text string) error {
	_, err := fmt.Fprintf(c.out, "%s\n", text)
	return err
}

func runPromptLoop(ctx context.Context, asst *assistant.Assistant, channel promptChannel) error {
	if err := channel.WriteMeta(ctx, "Interactive mode. Type /help for commands, /quit or /exit to stop."); err != nil {
		return err
	}

	for {
		raw, err := channel.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input := strings.TrimSpace(raw)
		if input == "" {
			continue
		}
		switch strings.ToLower(input) {
		case "/quit", "quit", "/exit", "exit":
			return nil
		case "/help":
			if err := channel.WriteMeta(ctx, replHelp+"\n\n"+executor.HelpMessage()); err != nil {
				return err
			}
			continue
		case "/reset":
			asst.Reset()
			if err := channel.WriteMeta(ctx, "Conversation cleared."); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(input, "/") {
			if err := channel.WriteMeta(ctx, fmt.Sprintf("unknown command %s; try /help", input)); err != nil {
				return err
			}
			continue
		}

		turn, err := asst.Handle(ctx, input)
		if turn.ProviderError != "" {
			if writeErr := channel.WriteMeta(ctx, "model unavailable, used keyword parser: "+turn.ProviderError); writeErr != nil {
				return writeErr
			}
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if writeErr := channel.WriteMeta(ctx, fmt.Sprintf("error: %v", err)); writeErr != nil {
				return writeErr
			}
			continue
		}
		if err := channel.Write(ctx, turn.Reply); err != nil {
			return err
		}
	}
}
