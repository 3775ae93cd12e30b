// Package platform is a client for the hosting platform's REST API. It performs
// lifecycle actions on resources and reads their logs and deployments.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/saturn-platform/opsclaw/internal/command"
	"github.com/saturn-platform/opsclaw/internal/executor"
)

const (
	defaultLogLines  = 200
	defaultUserAgent = "opsclaw"
	maxLogOutput     = 4000
	maxErrorBody     = 512
)

var (
	// ErrNotFound is returned when the platform does not know the resource.
	ErrNotFound error = operatorError("not found on the platform")
	// ErrUnsupported is returned for actions the resource type cannot perform.
	ErrUnsupported error = operatorError("not supported for this resource type")
)

type operatorError string

func (e operatorError) Error() string           { return string(e) }
func (e operatorError) OperatorMessage() string { return string(e) }

// APIError is a non-2xx platform response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform returned %d", e.StatusCode)
	}
	return fmt.Sprintf("platform returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) OperatorMessage() string {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound.Error()
	}
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return "the platform refused the request (check the API token)"
	}
	return e.Error()
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Deployment is one deployment of an application.
type Deployment struct {
	UUID          string `json:"deployment_uuid"`
	Status        string `json:"status"`
	Commit        string `json:"commit"`
	CommitMessage string `json:"commit_message"`
	Logs          string `json:"logs"`
	CreatedAt     string `json:"created_at"`
}

// Client calls the platform API with a bearer token.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	logLines int
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogLines sets how many log lines the logs action fetches.
func WithLogLines(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.logLines = n
		}
	}
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
		logLines: defaultLogLines,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch performs a lifecycle action or fetches logs for r.
func (c *Client) Dispatch(ctx context.Context, action command.Action, r executor.Resource) (executor.Outcome, error) {
	if r.UUID == "" {
		return executor.Outcome{}, fmt.Errorf("resource %q has no platform uuid", r.Name)
	}

	switch action {
	case command.ActionDeploy:
		return c.deploy(ctx, r)
	case command.ActionRestart, command.ActionStop, command.ActionStart:
		collection, err := collectionFor(r.Type)
		if err != nil {
			return executor.Outcome{}, err
		}
		var resp messageResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/"+collection+"/"+url.PathEscape(r.UUID)+"/"+string(action), nil, &resp); err != nil {
			return executor.Outcome{}, err
		}
		return outcome(resp.Message, fmt.Sprintf("%s %s: requested.", action, r.Name)), nil
	case command.ActionDelete:
		collection, err := collectionFor(r.Type)
		if err != nil {
			return executor.Outcome{}, err
		}
		var resp messageResponse
		if err := c.do(ctx, http.MethodDelete, "/api/v1/"+collection+"/"+url.PathEscape(r.UUID), nil, &resp); err != nil {
			return executor.Outcome{}, err
		}
		return outcome(resp.Message, fmt.Sprintf("delete %s: requested.", r.Name)), nil
	case command.ActionLogs:
		logs, err := c.Logs(ctx, r, c.logLines)
		if err != nil {
			return executor.Outcome{}, err
		}
		if strings.TrimSpace(logs) == "" {
			return executor.Outcome{Message: fmt.Sprintf("%s has no recent logs.", r.Name)}, nil
		}
		return executor.Outcome{
			Message: fmt.Sprintf("Last logs for %s:\n%s", r.Name, tail(logs, maxLogOutput)),
			Data:    map[string]any{"lines": strings.Count(logs, "\n") + 1},
		}, nil
	default:
		return executor.Outcome{}, fmt.Errorf("%s: %w", action, ErrUnsupported)
	}
}

func (c *Client) deploy(ctx context.Context, r executor.Resource) (executor.Outcome, error) {
	q := url.Values{"uuid": {r.UUID}}
	var resp struct {
		Deployments []struct {
			Message        string `json:"message"`
			DeploymentUUID string `json:"deployment_uuid"`
		} `json:"deployments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/deploy?"+q.Encode(), nil, &resp); err != nil {
		return executor.Outcome{}, err
	}
	if len(resp.Deployments) == 0 {
		return executor.Outcome{Message: fmt.Sprintf("deploy %s: queued.", r.Name)}, nil
	}
	d := resp.Deployments[0]
	return executor.Outcome{
		Message: outcome(d.Message, fmt.Sprintf("deploy %s: queued.", r.Name)).Message,
		Data:    map[string]any{"deployment_uuid": d.DeploymentUUID},
	}, nil
}

// Logs returns the last lines of r's container logs. Only applications
// expose logs.
func (c *Client) Logs(ctx context.Context, r executor.Resource, lines int) (string, error) {
	if r.Type != command.ResourceApplication {
		return "", fmt.Errorf("logs for %s: %w", r.Type, ErrUnsupported)
	}
	if lines <= 0 {
		lines = c.logLines
	}
	q := url.Values{"lines": {strconv.Itoa(lines)}}
	var resp struct {
		Logs string `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/applications/"+url.PathEscape(r.UUID)+"/logs?"+q.Encode(), nil, &resp); err != nil {
		return "", err
	}
	return resp.Logs, nil
}

// Deployment fetches one deployment by uuid.
func (c *Client) Deployment(ctx context.Context, deploymentUUID string) (Deployment, error) {
	var d Deployment
	if err := c.do(ctx, http.MethodGet, "/api/v1/deployments/"+url.PathEscape(deploymentUUID), nil, &d); err != nil {
		return Deployment{}, err
	}
	return d, nil
}

// LatestDeployment returns the most recent deployment of application r.
func (c *Client) LatestDeployment(ctx context.Context, r executor.Resource) (Deployment, error) {
	if r.Type != command.ResourceApplication {
		return Deployment{}, fmt.Errorf("deployments for %s: %w", r.Type, ErrUnsupported)
	}
	q := url.Values{"skip": {"0"}, "take": {"1"}}
	var resp struct {
		Deployments []Deployment `json:"deployments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/deployments/applications/"+url.PathEscape(r.UUID)+"?"+q.Encode(), nil, &resp); err != nil {
		return Deployment{}, err
	}
	if len(resp.Deployments) == 0 {
		return Deployment{}, fmt.Errorf("deployments of %s: %w", r.Name, ErrNotFound)
	}
	return resp.Deployments[0], nil
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create platform request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform request %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read platform response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var msg messageResponse
		if json.Unmarshal(raw, &msg) == nil && msg.Message != "" {
			apiErr.Message = msg.Message
		} else {
			apiErr.Message = strings.TrimSpace(tail(string(raw), maxErrorBody))
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode platform response: %w", err)
	}
	return nil
}

func collectionFor(t command.ResourceType) (string, error) {
	switch t {
	case command.ResourceApplication:
		return "applications", nil
	case command.ResourceService:
		return "services", nil
	case command.ResourceDatabase:
		return "databases", nil
	default:
		return "", fmt.Errorf("lifecycle actions on %s: %w", t, ErrUnsupported)
	}
}

func outcome(message, fallback string) executor.Outcome {
	if strings.TrimSpace(message) == "" {
		return executor.Outcome{Message: fallback}
	}
	return executor.Outcome{Message: message}
}

// tail keeps the last limit bytes of s, cut at a line boundary when possible.
func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[len(s)-limit:]
	if i := strings.IndexByte(cut, '\n'); i >= 0 && i < len(cut)-1 {
		cut = cut[i+1:]
	}
	return cut
}
