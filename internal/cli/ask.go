package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saturn-platform/opsclaw/internal/approval"
	"github.com/saturn-platform/opsclaw/internal/assistant"
	"github.com/saturn-platform/opsclaw/internal/command"
	"github.com/saturn-platform/opsclaw/internal/executor"
)

func newAskCmd() *cobra.Command {
	var (
		yes     bool
		session string
		asJSON  bool
		noModel bool
	)

	cmd := &cobra.Command{
		Use:   "ask <instruction>",
		Short: "Run one instruction, e.g. \"restart app api in shop\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instruction := strings.TrimSpace(strings.Join(args, " "))
			if instruction == "" {
				return errors.New("instruction is required")
			}
			if strings.HasPrefix(instruction, "/") {
				return fmt.Errorf("slash commands are only available in the repl")
			}
			if yes && session != "" {
				return errors.New("--yes and --session cannot be combined")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{noModel: noModel})
			if err != nil {
				return err
			}
			defer a.Close()

			var approver approval.Approver
			var pending *approval.PendingStore
			switch {
			case yes:
				approver = approveAll{}
			case session != "":
				if pending, err = a.pendingStore(); err != nil {
					return err
				}
				approver = deferApprover{}
			default:
				approver = approval.NewCLIApprover(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			turn, err := a.assistant(approver).Handle(cmd.Context(), instruction)
			if err != nil {
				return err
			}

			if pending != nil && turn.Denied && len(turn.Skipped) > 0 {
				parked := command.NewParsedIntent(turn.Skipped, turn.Intent.Confidence(), "")
				if err := pending.Save(cmd.Context(), session, parked); err != nil {
					return err
				}
				turn.Reply = pendingReply(turn, parked, session, cfg.Redis.ConfirmationTTL.String())
			}

			if asJSON {
				return writeTurnJSON(cmd.OutOrStdout(), turn)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), turn.Reply)
			return err
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Approve dangerous commands without prompting")
	cmd.Flags().StringVar(&session, "session", "", "Park unconfirmed dangerous commands under this id for `opsclaw confirm`")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the whole turn as JSON")
	cmd.Flags().BoolVar(&noModel, "no-model", false, "Parse with the keyword parser only")

	return cmd
}

func newConfirmCmd() *cobra.Command {
	var cancel bool

	cmd := &cobra.Command{
		Use:   "confirm <session>",
		Short: "Run or cancel commands parked by `ask --session`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := args[0]
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{noModel: true})
			if err != nil {
				return err
			}
			defer a.Close()

			pending, err := a.pendingStore()
			if err != nil {
				return err
			}
			if cancel {
				if err := pending.Discard(cmd.Context(), session); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return err
			}

			intent, err := pending.Take(cmd.Context(), session)
			if errors.Is(err, approval.ErrNotFound) {
				return fmt.Errorf("nothing is waiting for confirmation in session %q (it may have expired)", session)
			}
			if err != nil {
				return err
			}

			turn, err := a.assistant(approveAll{}).Execute(cmd.Context(), intent)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), turn.Reply)
			return err
		},
	}

	cmd.Flags().BoolVar(&cancel, "cancel", false, "Drop the parked commands instead of running them")

	return cmd
}

func pendingReply(turn assistant.Turn, parked command.ParsedIntent, session, ttl string) string {
	var lines []string
	if text := turn.Intent.ResponseText(); text != "" {
		lines = append(lines, text)
	}
	for _, res := range turn.Results {
		if msg := strings.TrimSpace(res.Message); msg != "" {
			lines = append(lines, msg)
		}
	}
	lines = append(lines, parked.ConfirmationMessage())
	lines = append(lines, fmt.Sprintf("Run `opsclaw confirm %s` within %s to proceed.", session, ttl))
	return strings.Join(lines, "\n")
}

type turnJSON struct {
	Input         string                  `json:"input"`
	Source        assistant.Source        `json:"source"`
	Intent        command.ParsedIntent    `json:"intent"`
	Results       []executor.Result       `json:"results,omitempty"`
	Skipped       []command.ParsedCommand `json:"skipped,omitempty"`
	Denied        bool                    `json:"denied"`
	Reply         string                  `json:"reply"`
	Provider      string                  `json:"provider,omitempty"`
	Model         string                  `json:"model,omitempty"`
	InputTokens   int                     `json:"input_tokens,omitempty"`
	OutputTokens  int                     `json:"output_tokens,omitempty"`
	ProviderError string                  `json:"provider_error,omitempty"`
}

func writeTurnJSON(w io.Writer, turn assistant.Turn) error {
	return writeJSON(w, turnJSON{
		Input:         turn.Input,
		Source:        turn.Source,
		Intent:        turn.Intent,
		Results:       turn.Results,
		Skipped:       turn.Skipped,
		Denied:        turn.Denied,
		Reply:         turn.Reply,
		Provider:      turn.Provider,
		Model:         turn.Model,
		InputTokens:   turn.InputTokens,
		OutputTokens:  turn.OutputTokens,
		ProviderError: turn.ProviderError,
	})
}
