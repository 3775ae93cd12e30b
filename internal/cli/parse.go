package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saturn-platform/opsclaw/internal/assistant"
	"github.com/saturn-platform/opsclaw/internal/tooldefs"
)

func newParseCmd() *cobra.Command {
	var noModel bool

	cmd := &cobra.Command{
		Use:   "parse <instruction>",
		Short: "Show how an instruction is understood without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			model, err := newModel(cfg, appOptions{noModel: noModel})
			if err != nil {
				return err
			}

			asst := assistant.New(model, nil, nil, assistant.WithReadOnly(cfg.Executor.ReadOnly))
			turn := asst.Parse(cmd.Context(), strings.Join(args, " "))
			return writeTurnJSON(cmd.OutOrStdout(), turn)
		},
	}

	cmd.Flags().BoolVar(&noModel, "no-model", false, "Parse with the keyword parser only")

	return cmd
}

func newToolsCmd() *cobra.Command {
	var (
		format   string
		readOnly bool
	)

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool definitions sent to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var defs any
			switch strings.ToLower(format) {
			case "anthropic":
				defs = tooldefs.ForAnthropic()
				if readOnly {
					defs = tooldefs.ParseIntentOnlyAnthropic()
				}
			case "openai":
				defs = tooldefs.ForOpenAI()
				if readOnly {
					defs = tooldefs.ParseIntentOnlyOpenAI()
				}
			case "", "generic":
				defs = tooldefs.Definitions()
				if readOnly {
					defs = tooldefs.ParseIntentOnly()
				}
			default:
				return fmt.Errorf("unknown format %q (want anthropic, openai or generic)", format)
			}
			return writeJSON(cmd.OutOrStdout(), defs)
		},
	}

	cmd.Flags().StringVar(&format, "format", "generic", "Output shape: anthropic, openai or generic")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Only the parse_intent tool")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
