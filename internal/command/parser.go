package command

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/shlex"
)

// ResourceInfo is the resource reference recovered from operator text.
// Empty fields mean the text did not mention them.
type ResourceInfo struct {
	Name        string
	Project     string
	Environment string
}

const namePattern = `[\p{L}\p{N}_][\p{L}\p{N}_.\-]*`

// qualifier matches "in <project>[/<env>]" and the Russian "в <проект>[/<окружение>]".
const qualifierPattern = `(?:\s+(?:in|в)\s+(` + namePattern + `)(?:/(` + namePattern + `))?)?`

type resourceRule struct {
	name string
	re   *regexp.Regexp
}

// Rules are tried in order; the first one that yields a usable name wins.
var resourceRules = []resourceRule{
	{
		name: "english",
		re: regexp.MustCompile(`(?i)(?:^|\s)(?:deploy|redeploy|restart|reboot|stop|start|delete|remove|destroy|logs?|status|check|analy[sz]e|review|metrics|inspect|show)` +
			`\s+(?:(?:for|of|on|the|my|health|errors?|logs?|metrics|deployment|code)\s+)*` +
			`(?:(?:application|app|service|database|db|server|project)\s+)?` +
			`(` + namePattern + `)` + qualifierPattern),
	},
	{
		name: "russian",
		re: regexp.MustCompile(`(?i)(?:^|\s)(?:удали(?:ть)?|задеплой(?:ть|те)?|разверни|деплой|перезапусти(?:ть)?|рестартни|останови(?:ть)?|запусти(?:ть)?|логи|статус|проверь|проанализируй)` +
			`\s+(?:(?:логи|ошибки|метрики|здоровье)\s+)*` +
			`(?:(?:приложение|сервис|базу|бд|сервер|проект)\s+)?` +
			`(` + namePattern + `)` + qualifierPattern),
	},
	{
		name: "quoted",
		re:   regexp.MustCompile(`(?i)["'«]([^"'«»]+)["'»]` + qualifierPattern),
	},
}

var qualifierOnly = regexp.MustCompile(`(?i)(?:^|\s)(?:in|в)\s+(` + namePattern + `)(?:/(` + namePattern + `))?`)

// Words that a greedy rule may capture in the name slot but never name a resource.
var nameStopWords = map[string]bool{
	"in": true, "all": true, "everything": true, "every": true,
	"application": true, "applications": true, "app": true, "apps": true,
	"service": true, "services": true, "database": true, "databases": true, "db": true,
	"server": true, "servers": true, "project": true, "projects": true,
	"в": true, "все": true, "всё": true, "приложение": true, "приложения": true,
	"сервис": true, "сервисы": true, "базу": true, "бд": true, "сервер": true, "серверы": true,
}

// ExtractResourceInfo recovers a resource name and optional project/environment
// qualifier from free text. It never fails; unmatched text yields an empty Name.
func ExtractResourceInfo(text string) ResourceInfo {
	text = strings.TrimSpace(text)
	for _, rule := range resourceRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" || nameStopWords[strings.ToLower(name)] {
			continue
		}
		return ResourceInfo{Name: name, Project: m[2], Environment: m[3]}
	}
	if m := qualifierOnly.FindStringSubmatch(text); m != nil {
		return ResourceInfo{Project: m[1], Environment: m[2]}
	}
	return ResourceInfo{}
}

var actionWords = map[string]Action{
	"deploy":      ActionDeploy,
	"redeploy":    ActionDeploy,
	"restart":     ActionRestart,
	"reboot":      ActionRestart,
	"stop":        ActionStop,
	"start":       ActionStart,
	"delete":      ActionDelete,
	"remove":      ActionDelete,
	"destroy":     ActionDelete,
	"logs":        ActionLogs,
	"log":         ActionLogs,
	"status":      ActionStatus,
	"metrics":     ActionMetrics,
	"help":        ActionHelp,
	"задеплой":    ActionDeploy,
	"задеплоить":  ActionDeploy,
	"разверни":    ActionDeploy,
	"деплой":      ActionDeploy,
	"перезапусти": ActionRestart,
	"рестартни":   ActionRestart,
	"останови":    ActionStop,
	"остановить":  ActionStop,
	"запусти":     ActionStart,
	"запустить":   ActionStart,
	"удали":       ActionDelete,
	"удалить":     ActionDelete,
	"логи":        ActionLogs,
	"статус":      ActionStatus,
	"метрики":     ActionMetrics,
	"помощь":      ActionHelp,
}

var resourceTypeWords = map[string]ResourceType{
	"application":  ResourceApplication,
	"applications": ResourceApplication,
	"app":          ResourceApplication,
	"apps":         ResourceApplication,
	"service":      ResourceService,
	"services":     ResourceService,
	"database":     ResourceDatabase,
	"databases":    ResourceDatabase,
	"db":           ResourceDatabase,
	"server":       ResourceServer,
	"servers":      ResourceServer,
	"project":      ResourceProject,
	"приложение":   ResourceApplication,
	"приложения":   ResourceApplication,
	"сервис":       ResourceService,
	"сервисы":      ResourceService,
	"базу":         ResourceDatabase,
	"бд":           ResourceDatabase,
	"сервер":       ResourceServer,
	"серверы":      ResourceServer,
	"проект":       ResourceProject,
}

var periodToken = regexp.MustCompile(`(?i)(?:^|\s)(\d+[hdwm])(?:\s|$)`)

// DetectAction maps trigger words in free text to an action. A leading verb
// wins; otherwise analysis phrases are checked before single verbs. Matching
// is per token, so resource names like "analytics-api" never trigger.
func DetectAction(text string) Action {
	words := actionTokens(text)
	if len(words) == 0 {
		return ActionNone
	}
	if a, ok := actionWords[words[0]]; ok {
		return a
	}
	switch {
	case hasPhrase(words, "health", "check"), hasPhrase(words, "check", "health"),
		containsToken(words, "health-check", "healthcheck", "здоровье"):
		return ActionHealthCheck
	case hasPhrase(words, "code", "review"), hasPhrase(words, "review", "code"),
		hasPhrase(words, "review", "the", "code"), containsToken(words, "ревью"):
		return ActionCodeReview
	case containsToken(words, "analyze", "analyse", "analysis", "проанализируй", "анализ"):
		if containsToken(words, "deploy", "deployment", "deployments", "деплой", "деплоя") {
			return ActionAnalyzeDeployment
		}
		return ActionAnalyzeErrors
	case containsToken(words, "errors", "ошибки"):
		return ActionAnalyzeErrors
	}
	for _, w := range words {
		if a, ok := actionWords[w]; ok {
			return a
		}
	}
	return ActionNone
}

func actionTokens(text string) []string {
	var words []string
	for _, tok := range tokenize(strings.ToLower(strings.TrimSpace(text))) {
		if tok = strings.Trim(tok, ".,!?;:"); tok != "" {
			words = append(words, tok)
		}
	}
	return words
}

// hasPhrase reports whether phrase occurs as consecutive tokens in words.
func hasPhrase(words []string, phrase ...string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		if slices.Equal(words[i:i+len(phrase)], phrase) {
			return true
		}
	}
	return false
}

// ParseText is the single-command heuristic path from raw operator text.
func ParseText(text string) ParsedIntent {
	action := DetectAction(text)
	switch action {
	case ActionNone:
		return NewParsedIntent(nil, 0, "")
	case ActionHelp:
		return NewParsedIntent([]ParsedCommand{{Action: ActionHelp, ResourceType: ResourceNone}}, 0.9, "")
	}

	info := ExtractResourceInfo(text)
	tokens := tokenize(strings.ToLower(text))
	cmd := ParsedCommand{
		Action:          action,
		ResourceType:    ResourceNone,
		ResourceName:    info.Name,
		ProjectName:     info.Project,
		EnvironmentName: info.Environment,
	}
	for _, tok := range tokens {
		if rt, ok := resourceTypeWords[tok]; ok {
			cmd.ResourceType = rt
			break
		}
	}
	switch {
	case cmd.ResourceName != "":
		cmd.TargetScope = ScopeSingle
	case containsToken(tokens, "all", "every", "все", "всё"):
		cmd.TargetScope = ScopeAll
	}
	if m := periodToken.FindStringSubmatch(text); m != nil {
		cmd.TimePeriod = strings.ToLower(m[1])
	}

	confidence := 0.3
	if cmd.HasResource() {
		confidence = 0.6
	}
	return NewParsedIntent([]ParsedCommand{cmd}, confidence, "")
}

type wireCommand struct {
	Action          string   `mapstructure:"action"`
	Intent          string   `mapstructure:"intent"`
	ResourceType    string   `mapstructure:"resource_type"`
	ResourceName    string   `mapstructure:"resource_name"`
	ResourceID      string   `mapstructure:"resource_id"`
	ProjectName     string   `mapstructure:"project_name"`
	EnvironmentName string   `mapstructure:"environment_name"`
	TargetScope     string   `mapstructure:"target_scope"`
	DeploymentUUID  string   `mapstructure:"deployment_uuid"`
	ResourceNames   []string `mapstructure:"resource_names"`
	TimePeriod      string   `mapstructure:"time_period"`
}

type wireIntent struct {
	Commands     []map[string]any `mapstructure:"commands"`
	Intent       string           `mapstructure:"intent"`
	Params       map[string]any   `mapstructure:"params"`
	Confidence   float64          `mapstructure:"confidence"`
	ResponseText string           `mapstructure:"response_text"`
	Confirmation bool             `mapstructure:"requires_confirmation"`
	ConfirmText  string           `mapstructure:"confirmation_message"`
}

// BuildCommand converts raw tool-call arguments into a ParsedCommand.
// Unknown keys are ignored and missing optional keys stay empty.
func BuildCommand(raw map[string]any) (ParsedCommand, error) {
	var w wireCommand
	if err := decodeWire(raw, &w); err != nil {
		return ParsedCommand{}, fmt.Errorf("decode command: %w", err)
	}

	action := w.Action
	if action == "" {
		action = w.Intent
	}
	name := strings.TrimSpace(w.ResourceName)
	if name == "" {
		name = strings.TrimSpace(w.ResourceID)
	}
	cmd := ParsedCommand{
		Action:          normalizeAction(action),
		ResourceType:    normalizeResourceType(w.ResourceType),
		ResourceName:    name,
		ProjectName:     strings.TrimSpace(w.ProjectName),
		EnvironmentName: strings.TrimSpace(w.EnvironmentName),
		TargetScope:     TargetScope(strings.ToLower(strings.TrimSpace(w.TargetScope))),
		DeploymentUUID:  strings.TrimSpace(w.DeploymentUUID),
		TimePeriod:      strings.ToLower(strings.TrimSpace(w.TimePeriod)),
	}
	for _, n := range w.ResourceNames {
		if n = strings.TrimSpace(n); n != "" {
			cmd.ResourceNames = append(cmd.ResourceNames, n)
		}
	}
	if cmd.TargetScope == "" && len(cmd.ResourceNames) > 1 {
		cmd.TargetScope = ScopeMultiple
	}
	return cmd, nil
}

// BuildIntent converts a raw {commands, confidence, response_text} map into a
// ParsedIntent. Confirmation fields are derived, never read from the input.
func BuildIntent(raw map[string]any) (ParsedIntent, error) {
	var w wireIntent
	if err := decodeWire(raw, &w); err != nil {
		return ParsedIntent{}, fmt.Errorf("decode intent: %w", err)
	}
	commands := make([]ParsedCommand, 0, len(w.Commands))
	for i, rawCmd := range w.Commands {
		cmd, err := BuildCommand(rawCmd)
		if err != nil {
			return ParsedIntent{}, fmt.Errorf("command %d: %w", i, err)
		}
		commands = append(commands, cmd)
	}
	return NewParsedIntent(commands, w.Confidence, strings.TrimSpace(w.ResponseText)), nil
}

// FromAIResponse accepts either the multi-command shape ({"commands": [...]})
// or the single-intent shape ({"intent": ..., "params": {...}}) and returns a
// ParsedIntent. An intent of "none" yields an intent without commands.
func FromAIResponse(raw map[string]any) (ParsedIntent, error) {
	if raw == nil {
		return ParsedIntent{}, errors.New("empty model response")
	}
	if hasCommandList(raw["commands"]) {
		return BuildIntent(raw)
	}

	var w wireIntent
	if err := decodeWire(raw, &w); err != nil {
		return ParsedIntent{}, fmt.Errorf("decode intent: %w", err)
	}
	flat := make(map[string]any, len(raw)+len(w.Params))
	for k, v := range w.Params {
		if v != nil {
			flat[k] = v
		}
	}
	for k, v := range raw {
		if k != "params" && v != nil {
			flat[k] = v
		}
	}
	cmd, err := BuildCommand(flat)
	if err != nil {
		return ParsedIntent{}, err
	}
	var commands []ParsedCommand
	if cmd.Action != ActionNone {
		commands = append(commands, cmd)
	}
	return NewParsedIntent(commands, w.Confidence, strings.TrimSpace(w.ResponseText)), nil
}

// hasCommandList reports whether raw carries a command list to decode. Strict
// tool calls send "commands": null next to a single intent; anything other
// than null or an empty array goes to BuildIntent, which rejects bad shapes.
func hasCommandList(v any) bool {
	switch cs := v.(type) {
	case nil:
		return false
	case []any:
		return len(cs) > 0
	case []map[string]any:
		return len(cs) > 0
	default:
		return true
	}
}

// IntentResultFromMap builds the legacy single-intent shape. Confirmation is
// required when the model asked for it or the intent is dangerous.
func IntentResultFromMap(raw map[string]any) (IntentResult, error) {
	var w wireIntent
	if err := decodeWire(raw, &w); err != nil {
		return IntentResult{}, fmt.Errorf("decode intent result: %w", err)
	}
	intent := strings.ToLower(strings.TrimSpace(w.Intent))
	if intent == string(ActionNone) {
		intent = ""
	}
	res := IntentResult{
		Intent:               intent,
		Params:               w.Params,
		Confidence:           clampConfidence(w.Confidence),
		RequiresConfirmation: w.Confirmation,
		ConfirmationMessage:  strings.TrimSpace(w.ConfirmText),
		ResponseText:         strings.TrimSpace(w.ResponseText),
	}
	if res.IsDangerous() {
		res.RequiresConfirmation = true
	}
	if res.RequiresConfirmation && res.ConfirmationMessage == "" {
		res.ConfirmationMessage = "This action needs confirmation:\n- " + DescribeCommand(res.ToCommand())
	}
	return res, nil
}

func decodeWire(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func normalizeAction(s string) Action {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ActionNone
	}
	return Action(s)
}

func normalizeResourceType(s string) ResourceType {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return ResourceNone
	case "app":
		return ResourceApplication
	case "db":
		return ResourceDatabase
	default:
		return ResourceType(s)
	}
}

func tokenize(text string) []string {
	tokens, err := shlex.Split(text)
	if err != nil {
		return strings.Fields(text)
	}
	return tokens
}

func containsToken(tokens []string, words ...string) bool {
	for _, t := range tokens {
		for _, w := range words {
			if t == w {
				return true
			}
		}
	}
	return false
}
