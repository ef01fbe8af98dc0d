package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/michaelbrown/codetutor/internal/credential"
	"github.com/michaelbrown/codetutor/internal/llm"
	"github.com/michaelbrown/codetutor/internal/metrics"
)

// ErrJudgeUnavailable means no model is configured or its endpoint cannot be
// reached. Evaluate falls back to the local comparator on any judge error.
var ErrJudgeUnavailable = errors.New("judge unavailable")

// Judge answers a free-text prompt within a token budget.
type Judge interface {
	Ask(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// CredentialSource lists configured models, first one active.
type CredentialSource interface {
	Get(ctx context.Context) ([]credential.Credential, error)
}

// JudgeConfig controls how StoreJudge talks to the model.
type JudgeConfig struct {
	DefaultBaseURL string
	DefaultModel   string
	SystemPrompt   string
	Temperature    float64
	DialTimeout    time.Duration
}

// StoreJudge asks the first model in the credential store. Credentials are
// read on every call so edits through model_key take effect immediately.
type StoreJudge struct {
	creds     CredentialSource
	cfg       JudgeConfig
	newClient func(baseURL, apiKey, model string) llm.Client
	dial      func(ctx context.Context, addr string, timeout time.Duration) error
	logger    *slog.Logger
}

// JudgeOption customizes a StoreJudge.
type JudgeOption func(*StoreJudge)

// WithClientFactory replaces the OpenAI-compatible client constructor.
func WithClientFactory(fn func(baseURL, apiKey, model string) llm.Client) JudgeOption {
	return func(j *StoreJudge) { j.newClient = fn }
}

// WithDialer replaces the TCP reachability check.
func WithDialer(fn func(ctx context.Context, addr string, timeout time.Duration) error) JudgeOption {
	return func(j *StoreJudge) { j.dial = fn }
}

// WithJudgeLogger sets the logger.
func WithJudgeLogger(l *slog.Logger) JudgeOption {
	return func(j *StoreJudge) { j.logger = l }
}

// NewStoreJudge creates a judge backed by creds.
func NewStoreJudge(creds CredentialSource, cfg JudgeConfig, opts ...JudgeOption) *StoreJudge {
	j := &StoreJudge{
		creds: creds,
		cfg:   cfg,
		newClient: func(baseURL, apiKey, model string) llm.Client {
			return llm.NewClient(baseURL, apiKey, model)
		},
		dial:   dialJudge,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With("component", "judge")
	return j
}

func (j *StoreJudge) Ask(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reply, err := j.ask(ctx, prompt, maxTokens)
	switch {
	case errors.Is(err, ErrJudgeUnavailable):
		metrics.JudgeRequestsTotal.WithLabelValues("unavailable").Inc()
	case err != nil:
		metrics.JudgeRequestsTotal.WithLabelValues("error").Inc()
	default:
		metrics.JudgeRequestsTotal.WithLabelValues("ok").Inc()
	}
	return reply, err
}

func (j *StoreJudge) ask(ctx context.Context, prompt string, maxTokens int) (string, error) {
	creds, err := j.creds.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}
	if len(creds) == 0 || creds[0].APIKey == "" {
		return "", fmt.Errorf("%w: no model key configured", ErrJudgeUnavailable)
	}

	active := creds[0]
	model := active.ModelName
	if model == "" {
		model = j.cfg.DefaultModel
	}
	baseURL := active.BaseURL
	if baseURL == "" {
		baseURL = j.cfg.DefaultBaseURL
	}

	addr, err := judgeAddr(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
	}
	if err := j.dial(ctx, addr, j.cfg.DialTimeout); err != nil {
		j.logger.Warn("judge endpoint unreachable", "addr", addr, "error", err)
		return "", fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
	}

	start := time.Now()
	client := j.newClient(baseURL, active.APIKey, model)
	resp, err := client.ChatCompletion(ctx, []llm.Message{
		llm.SystemMessage(j.cfg.SystemPrompt),
		llm.UserMessage(prompt),
	}, llm.CompletionOptions{MaxTokens: maxTokens, Temperature: j.cfg.Temperature})
	if err != nil {
		return "", fmt.Errorf("asking %s: %w", model, err)
	}

	j.logger.Debug("judge replied", "model", model, "duration", time.Since(start), "finish_reason", resp.FinishReason)
	return resp.Message.Content, nil
}

// judgeAddr turns a base URL into host:port for the reachability check.
func judgeAddr(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func dialJudge(ctx context.Context, addr string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
