// Package tutor evaluates learner submissions against reference code and
// produces hints and solutions. Evaluation asks the model-backed judge first
// and falls back to a local comparison of variable bindings when the judge
// is unavailable or fails.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/metrics"
)

// ErrMissingInput is returned when a required snippet is empty.
var ErrMissingInput = errors.New("missing required parameters")

// Runner executes a snippet in isolation.
type Runner interface {
	Execute(ctx context.Context, source string) executor.Result
}

// Config holds the verdict contract and per-request token budgets.
type Config struct {
	Tokens            VerdictTokens
	EvaluateMaxTokens int
	HintMaxTokens     int
	SolutionMaxTokens int
}

// DefaultConfig returns the stock budgets: 200 tokens to evaluate, 100 for
// a hint and 500 for a solution.
func DefaultConfig() Config {
	return Config{
		Tokens:            DefaultVerdictTokens,
		EvaluateMaxTokens: 200,
		HintMaxTokens:     100,
		SolutionMaxTokens: 500,
	}
}

// Submission is one learner attempt at a reference snippet.
type Submission struct {
	Reference string
	Learner   string
	// LearnerOutput is shown to the judge. When empty and LearnerRun is
	// set, LearnerRun.Output is used.
	LearnerOutput string
	// LearnerRun is an execution of Learner the caller already has. The
	// fallback reuses it instead of running the learner code again.
	LearnerRun *executor.Result
}

// Tutor orchestrates evaluation.
type Tutor struct {
	judge  Judge
	runner Runner
	cfg    Config
	logger *slog.Logger
}

// New creates a Tutor. judge may be nil, in which case every evaluation uses
// the local fallback and hints/solutions report ErrJudgeUnavailable.
func New(judge Judge, runner Runner, cfg Config, logger *slog.Logger) *Tutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tutor{
		judge:  judge,
		runner: runner,
		cfg:    cfg,
		logger: logger.With("component", "tutor"),
	}
}

// Evaluate decides whether sub.Learner implements the same behaviour as
// sub.Reference.
func (t *Tutor) Evaluate(ctx context.Context, sub Submission) (Verdict, error) {
	if strings.TrimSpace(sub.Reference) == "" || strings.TrimSpace(sub.Learner) == "" {
		return Verdict{}, ErrMissingInput
	}

	if t.judge != nil {
		output := sub.LearnerOutput
		if output == "" && sub.LearnerRun != nil {
			output = sub.LearnerRun.Output
		}
		prompt := evaluatePrompt(t.cfg.Tokens, sub.Reference, sub.Learner, output)
		reply, err := t.judge.Ask(ctx, prompt, t.cfg.EvaluateMaxTokens)
		if err == nil {
			v := ParseVerdict(reply, t.cfg.Tokens)
			t.record(v)
			return v, nil
		}
		t.logger.Info("judge failed, using fallback comparison", "error", err)
	}

	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	v := t.compare(ctx, sub)
	t.record(v)
	return v, nil
}

// compare runs the reference and checks every binding it produces against
// the learner's namespace.
func (t *Tutor) compare(ctx context.Context, sub Submission) Verdict {
	v := Verdict{Source: SourceFallback}

	ref := t.runner.Execute(ctx, sub.Reference)
	if !ref.Success {
		t.logger.Warn("reference code failed, accepting submission", "output", lastLine(ref.Output))
		v.Passed = true
		v.Reason = "reference code failed to run"
		return v
	}

	var learner executor.Result
	if sub.LearnerRun != nil {
		learner = *sub.LearnerRun
	} else {
		learner = t.runner.Execute(ctx, sub.Learner)
	}
	if !learner.Success {
		v.Reason = "code raised an error: " + lastLine(learner.Output)
		return v
	}

	names := make([]string, 0, len(ref.Bindings))
	for name := range ref.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		want := ref.Bindings[name]
		got, ok := learner.Bindings[name]
		if !ok {
			v.Reason = fmt.Sprintf("variable %s: expected %s, got nothing (not defined)", name, want.Repr)
			return v
		}
		if !want.Equal(got) {
			v.Reason = fmt.Sprintf("variable %s: expected %s, got %s", name, want.Repr, got.Repr)
			return v
		}
	}

	v.Passed = true
	return v
}

func (t *Tutor) record(v Verdict) {
	verdict := "fail"
	if v.Passed {
		verdict = "pass"
	}
	metrics.EvaluationsTotal.WithLabelValues(v.Source, verdict).Inc()
}

// HintRequest carries the learner's attempt.
type HintRequest struct {
	Code         string
	Expected     string
	ActualOutput string
}

// Hint returns a short nudge toward the expected code. Code and Expected are
// required.
func (t *Tutor) Hint(ctx context.Context, req HintRequest) (string, error) {
	if req.Code == "" || req.Expected == "" {
		return "", ErrMissingInput
	}
	if t.judge == nil {
		return "", ErrJudgeUnavailable
	}
	return t.judge.Ask(ctx, hintPrompt(req.Code, req.Expected, req.ActualOutput), t.cfg.HintMaxTokens)
}

// Solution returns a full solution. Only Expected is required.
func (t *Tutor) Solution(ctx context.Context, req HintRequest) (string, error) {
	if req.Expected == "" {
		return "", ErrMissingInput
	}
	if t.judge == nil {
		return "", ErrJudgeUnavailable
	}
	return t.judge.Ask(ctx, solutionPrompt(req.Code, req.Expected, req.ActualOutput), t.cfg.SolutionMaxTokens)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
