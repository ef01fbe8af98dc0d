// Package dispatch maps decoded requests to their handlers and turns every
// outcome, including handler panics, into exactly one envelope.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/michaelbrown/codetutor/internal/credential"
	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/metrics"
	"github.com/michaelbrown/codetutor/internal/protocol"
	"github.com/michaelbrown/codetutor/internal/tutor"
	"github.com/michaelbrown/codetutor/internal/tutorial"
)

// ErrMissingParams is reported when a required payload field is absent.
var ErrMissingParams = errors.New("Missing required parameters")

// ContentProvider lists and loads tutorials.
type ContentProvider interface {
	List() []tutorial.Entry
	Tutorial(key string) (*tutorial.Tutorial, error)
}

// CredentialStore holds model endpoints and keys.
type CredentialStore interface {
	Get(ctx context.Context) ([]credential.Credential, error)
	Upsert(ctx context.Context, c credential.Credential) error
	Delete(ctx context.Context, modelName string) error
}

// Evaluator judges submissions and produces hints and solutions.
type Evaluator interface {
	Evaluate(ctx context.Context, sub tutor.Submission) (tutor.Verdict, error)
	Hint(ctx context.Context, req tutor.HintRequest) (string, error)
	Solution(ctx context.Context, req tutor.HintRequest) (string, error)
}

// Runner executes a snippet.
type Runner interface {
	Execute(ctx context.Context, source string) executor.Result
}

// Deps are the collaborators a Dispatcher delegates to.
type Deps struct {
	Content   ContentProvider
	Creds     CredentialStore
	Runner    Runner
	Evaluator Evaluator
	Logger    *slog.Logger
}

// Dispatcher routes requests. It is safe for concurrent use when its
// collaborators are.
type Dispatcher struct {
	content   ContentProvider
	creds     CredentialStore
	runner    Runner
	evaluator Evaluator
	logger    *slog.Logger
}

// New creates a Dispatcher.
func New(deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		content:   deps.Content,
		creds:     deps.Creds,
		runner:    deps.Runner,
		evaluator: deps.Evaluator,
		logger:    logger.With("component", "dispatch"),
	}
}

// Handle answers req with a protocol.Response or protocol.Error carrying
// req.RequestID. It never panics.
func (d *Dispatcher) Handle(ctx context.Context, req protocol.Request) any {
	data, err := d.Dispatch(ctx, req)
	if err != nil {
		return protocol.Failure(err.Error(), req.RequestID)
	}
	return protocol.Success(data, req.RequestID)
}

// Dispatch runs the handler for req and returns its success data or the
// error to report.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request) (data map[string]any, err error) {
	cmd := ParseCommand(req.Command)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked", "command", req.Command, "panic", r)
			data, err = nil, fmt.Errorf("Error processing message: %v\n%s", r, debug.Stack())
		}

		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.CommandsTotal.WithLabelValues(cmd.String(), status).Inc()
		metrics.CommandDuration.WithLabelValues(cmd.String()).Observe(time.Since(start).Seconds())
		d.logger.Info("command handled",
			"command", req.Command,
			"request_id", req.RequestID.String(),
			"status", status,
			"duration", time.Since(start),
		)
	}()

	payload := req.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	switch cmd {
	case CommandGetTutorials:
		return d.getTutorials()
	case CommandGetTutorial:
		return d.getTutorial(payload)
	case CommandRunCode:
		return d.runCode(ctx, payload)
	case CommandGetHint:
		return d.getHint(ctx, payload)
	case CommandGetSolution:
		return d.getSolution(ctx, payload)
	case CommandModelKey:
		return d.modelKey(ctx, payload)
	case CommandUnknown:
	}
	return nil, fmt.Errorf("Unknown command: %s", req.Command)
}

// str returns payload[key] when it is a string.
func str(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
