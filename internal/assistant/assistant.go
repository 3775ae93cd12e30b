// Package assistant turns one operator instruction into parsed commands and
// their results. The model is asked first; when it fails or answers without a
// usable command, the heuristic parser takes over.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/saturn-platform/opsclaw/internal/approval"
	"github.com/saturn-platform/opsclaw/internal/command"
	"github.com/saturn-platform/opsclaw/internal/executor"
	"github.com/saturn-platform/opsclaw/internal/logging"
	"github.com/saturn-platform/opsclaw/internal/provider"
	"github.com/saturn-platform/opsclaw/internal/tooldefs"
)

// Source records where a turn's intent came from.
type Source string

const (
	SourceToolCall   Source = "tool_call"
	SourceStructured Source = "structured"
	SourceHeuristic  Source = "heuristic"
)

// CommandRunner executes one command. *executor.Executor implements it.
type CommandRunner interface {
	ExecuteCommand(ctx context.Context, cmd command.ParsedCommand) executor.Result
}

// Turn is the outcome of one instruction.
type Turn struct {
	Input         string
	Intent        command.ParsedIntent
	Source        Source
	Results       []executor.Result
	Skipped       []command.ParsedCommand
	Denied        bool
	Reply         string
	Provider      string
	Model         string
	InputTokens   int
	OutputTokens  int
	ProviderError string
}

// Assistant handles instructions for one conversation.
type Assistant struct {
	model        provider.Provider
	newRunner    func() CommandRunner
	gate         *approval.Gate
	systemPrompt string
	readOnly     bool
	structured   bool
	maxHistory   int
	history      []provider.ChatMessage
}

type Option func(*Assistant)

// WithReadOnly only offers the parse tool to the model and refuses
// lifecycle actions.
func WithReadOnly(readOnly bool) Option {
	return func(a *Assistant) { a.readOnly = readOnly }
}

// WithStructuredOutput asks the model for a JSON object matching the
// intent_result schema instead of offering tools. Only OpenAI-compatible
// backends enforce the schema.
func WithStructuredOutput(on bool) Option {
	return func(a *Assistant) { a.structured = on }
}

func WithSystemPrompt(prompt string) Option {
	return func(a *Assistant) {
		if strings.TrimSpace(prompt) != "" {
			a.systemPrompt = prompt
		}
	}
}

// WithMaxHistory caps the conversation messages replayed to the model.
func WithMaxHistory(n int) Option {
	return func(a *Assistant) { a.maxHistory = n }
}

// New builds an assistant. model may be nil, in which case every
// instruction goes through the heuristic parser. newRunner is called once
// per turn so no resolved state survives between turns.
func New(model provider.Provider, newRunner func() CommandRunner, approver approval.Approver, opts ...Option) *Assistant {
	a := &Assistant{
		model:        model,
		newRunner:    newRunner,
		gate:         approval.NewGate(approver),
		systemPrompt: DefaultSystemPrompt,
		maxHistory:   defaultMaxHistory,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.structured && a.systemPrompt == DefaultSystemPrompt {
		a.systemPrompt = StructuredSystemPrompt
	}
	return a
}

// Parse interprets text without executing anything.
func (a *Assistant) Parse(ctx context.Context, text string) Turn {
	turn := Turn{Input: text}
	text = strings.TrimSpace(text)
	if text == "" {
		turn.Source = SourceHeuristic
		turn.Intent = command.ParseText("")
		return turn
	}
	if a.model == nil {
		turn.Source = SourceHeuristic
		turn.Intent = command.ParseText(text)
		return turn
	}

	req := provider.ChatRequest{
		SystemPrompt: a.systemPrompt,
		Messages:     appendUserMessage(a.history, text),
	}
	switch {
	case a.structured:
		req.ResponseSchema = tooldefs.IntentResultSchema()
	case a.readOnly:
		req.Tools = tooldefs.ParseIntentOnly()
	default:
		req.Tools = tooldefs.Definitions()
	}
	started := time.Now()
	resp := a.model.Chat(ctx, req)
	turn.Provider = resp.Provider
	turn.Model = resp.Model
	turn.InputTokens = resp.InputTokens
	turn.OutputTokens = resp.OutputTokens
	logging.Logger().Info(
		"llm response",
		"provider", resp.Provider,
		"success", resp.Success,
		"tool_call_count", len(resp.ToolCalls),
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if !resp.Success {
		logging.Logger().Warn("model unavailable, using heuristic parser", "provider", resp.Provider, "err", resp.Error)
		turn.ProviderError = resp.Error
		turn.Source = SourceHeuristic
		turn.Intent = command.ParseText(text)
		return turn
	}

	if call := commandToolCall(resp); call != nil {
		if err := tooldefs.ValidateArguments(call.Name, call.Arguments); err != nil {
			logging.Logger().Warn("tool arguments do not match schema", "tool", call.Name, "err", err)
		}
		intent, err := command.FromAIResponse(call.Arguments)
		if err == nil {
			turn.Source = SourceToolCall
			turn.Intent = withResponseText(intent, resp.Content)
			return turn
		}
		logging.Logger().Warn("tool call rejected: invalid arguments", "tool", call.Name, "tool_call_id", call.ID, "err", err)
	}

	if raw, ok := decodeStructured(resp.Content); ok {
		if intent, err := command.FromAIResponse(raw); err == nil {
			turn.Source = SourceStructured
			turn.Intent = intent
			return turn
		}
	}

	turn.Source = SourceHeuristic
	turn.Intent = withResponseText(command.ParseText(text), resp.Content)
	return turn
}

// Handle parses text and runs its commands through the approval gate. The
// returned error is only set when approval could not be obtained or ctx ended;
// command failures are reported in Turn.Results.
func (a *Assistant) Handle(ctx context.Context, text string) (Turn, error) {
	turn := a.Parse(ctx, text)
	defer func() { a.remember(turn) }()

	var err error
	turn, err = a.run(ctx, turn)
	return turn, err
}

// Execute runs an already parsed intent, e.g. one confirmed after the fact.
// It does not touch the conversation history.
func (a *Assistant) Execute(ctx context.Context, intent command.ParsedIntent) (Turn, error) {
	return a.run(ctx, Turn{Intent: intent})
}

func (a *Assistant) run(ctx context.Context, turn Turn) (Turn, error) {
	if !turn.Intent.HasCommands() {
		turn.Reply = noCommandReply(turn)
		return turn, nil
	}

	runner := a.newRunner()
	report, err := a.gate.Run(ctx, turn.Intent, func(ctx context.Context, cmd command.ParsedCommand) executor.Result {
		if a.readOnly && mutates(cmd.Action) {
			return executor.Result{
				Action:  cmd.Action,
				Message: fmt.Sprintf("Read-only mode: %s was not run.", command.DescribeCommand(cmd)),
			}
		}
		return runner.ExecuteCommand(ctx, cmd)
	})
	turn.Results = report.Results
	turn.Skipped = report.Skipped
	turn.Denied = report.Denied
	turn.Reply = composeReply(turn)
	return turn, err
}

// Reset forgets the conversation history.
func (a *Assistant) Reset() {
	a.history = nil
}

func (a *Assistant) remember(turn Turn) {
	if a.model == nil || strings.TrimSpace(turn.Input) == "" {
		return
	}
	next := appendUserMessage(a.history, strings.TrimSpace(turn.Input))
	if reply := strings.TrimSpace(turn.Reply); reply != "" {
		next = append(next, provider.ChatMessage{Role: provider.RoleAssistant, Content: reply})
	}
	a.history = trimHistory(next, a.maxHistory)
}

func commandToolCall(resp provider.ChatResponse) *provider.ToolCall {
	for _, name := range []string{tooldefs.ExecuteCommandTool, tooldefs.ParseIntentTool} {
		if call := resp.ToolCall(name); call != nil {
			return call
		}
	}
	return nil
}

// decodeStructured reads a JSON object reply, tolerating a markdown fence.
func decodeStructured(content string) (map[string]any, bool) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}
	if !strings.HasPrefix(content, "{") {
		return nil, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, false
	}
	_, hasIntent := raw["intent"]
	_, hasCommands := raw["commands"]
	if !hasIntent && !hasCommands {
		return nil, false
	}
	return raw, true
}

func withResponseText(intent command.ParsedIntent, content string) command.ParsedIntent {
	content = strings.TrimSpace(content)
	if intent.ResponseText() != "" || content == "" {
		return intent
	}
	return command.NewParsedIntent(intent.Commands(), intent.Confidence(), content)
}

func mutates(a command.Action) bool {
	switch a {
	case command.ActionDeploy, command.ActionRestart, command.ActionStop, command.ActionStart, command.ActionDelete:
		return true
	default:
		return false
	}
}

func noCommandReply(turn Turn) string {
	if text := turn.Intent.ResponseText(); text != "" {
		return text
	}
	return `I could not find a command in that. Say "help" to see what I can do.`
}

func composeReply(turn Turn) string {
	var lines []string
	if text := turn.Intent.ResponseText(); text != "" {
		lines = append(lines, text)
	}
	for _, res := range turn.Results {
		if msg := strings.TrimSpace(res.Message); msg != "" {
			lines = append(lines, msg)
		}
	}
	if turn.Denied {
		lines = append(lines, approval.DeniedMessage(turn.Skipped))
	}
	return strings.Join(lines, "\n")
}
