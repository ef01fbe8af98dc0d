// Package executor runs learner and reference snippets through a sandbox and
// reports captured output plus the resulting variable bindings.
//
// Every call starts a fresh interpreter process, so nothing bound by one
// snippet is visible to the next.
package executor

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/michaelbrown/codetutor/internal/metrics"
	"github.com/michaelbrown/codetutor/internal/sandbox"
)

//go:embed harness.py
var harnessSource string

const harnessFile = "harness.py"

// Binding is one name from the post-execution namespace.
type Binding struct {
	Type  string          `json:"type"`
	Repr  string          `json:"repr"`
	Value json.RawMessage `json:"value,omitempty"` // absent when not JSON-representable
}

// Equal follows Python's == for the common cases. Values of different types
// are unequal, except that bool, int and float compare numerically
// (True == 1, 2 == 2.0). Same-typed values compare by JSON value when both
// have one and by repr otherwise.
func (b Binding) Equal(o Binding) bool {
	if b.Type != "" && o.Type != "" && b.Type != o.Type && !(numericType(b.Type) && numericType(o.Type)) {
		return false
	}
	if len(b.Value) > 0 && len(o.Value) > 0 {
		var x, y any
		if json.Unmarshal(b.Value, &x) == nil && json.Unmarshal(o.Value, &y) == nil {
			return reflect.DeepEqual(boolsAsNumbers(x), boolsAsNumbers(y))
		}
	}
	return b.Repr == o.Repr
}

func numericType(name string) bool {
	switch name {
	case "bool", "int", "float":
		return true
	}
	return false
}

// boolsAsNumbers rewrites decoded JSON so true/false equal 1/0, as in Python.
func boolsAsNumbers(v any) any {
	switch v := v.(type) {
	case bool:
		if v {
			return float64(1)
		}
		return float64(0)
	case []any:
		for i := range v {
			v[i] = boolsAsNumbers(v[i])
		}
	case map[string]any:
		for k := range v {
			v[k] = boolsAsNumbers(v[k])
		}
	}
	return v
}

func (b Binding) String() string {
	return b.Repr
}

// Result is the outcome of one snippet run. On failure Output holds the
// formatted traceback instead of captured stdout.
type Result struct {
	Success  bool               `json:"success"`
	Output   string             `json:"output"`
	Bindings map[string]Binding `json:"bindings,omitempty"`
}

// Options configures an Executor.
type Options struct {
	// Interpreter is the python binary used by the process backend.
	Interpreter string
	// Image selects the docker image; when set the command uses the
	// image's "python" instead of Interpreter.
	Image string
	// MaxOutputChars caps captured stdout inside the interpreter.
	MaxOutputChars int
	Logger         *slog.Logger
}

// PipeLimit returns the stdout cap a sandbox needs so that a run whose
// captured output stays within maxOutputChars still delivers its result.
// The result line carries the output JSON-escaped (at most six bytes per
// character), a bindings section bounded by maxOutputChars, and framing.
// Zero or less means no limit.
func PipeLimit(maxOutputChars int) int {
	if maxOutputChars <= 0 {
		return 0
	}
	return 7*maxOutputChars + 64<<10
}

// DefaultInterpreter returns the python binary name for this platform.
func DefaultInterpreter() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// Executor runs snippets through a sandbox.
type Executor struct {
	sb     sandbox.Sandbox
	opts   Options
	logger *slog.Logger
}

// New creates an Executor on top of the given sandbox.
func New(sb sandbox.Sandbox, opts Options) *Executor {
	if opts.Interpreter == "" {
		opts.Interpreter = DefaultInterpreter()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{sb: sb, opts: opts, logger: logger.With("component", "executor")}
}

// Execute runs source in a fresh namespace. It never returns an error:
// runtime errors, timeouts and sandbox failures are all reported through
// Result.Success and Result.Output.
func (e *Executor) Execute(ctx context.Context, source string) Result {
	marker := "@@codetutor-result-" + uuid.NewString() + "@@"

	interpreter := e.opts.Interpreter
	if e.opts.Image != "" {
		interpreter = "python"
	}

	res, err := e.sb.Exec(ctx, sandbox.ExecOpts{
		Image:   e.opts.Image,
		Command: []string{interpreter, harnessFile, marker, strconv.Itoa(e.opts.MaxOutputChars)},
		Files:   map[string]string{harnessFile: harnessSource},
		Stdin:   source,
	})
	if err != nil {
		e.logger.Error("sandbox exec failed", "error", err)
		metrics.ExecutionsTotal.WithLabelValues("infra").Inc()
		return failure(fmt.Sprintf("ExecutionError: could not start interpreter: %v\n", err))
	}

	if res.TimedOut {
		metrics.ExecutionsTotal.WithLabelValues("timeout").Inc()
		return failure("TimeoutError: execution exceeded the time limit and was stopped\n")
	}

	result, err := parseHarnessOutput(res.Stdout, marker)
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues("infra").Inc()
		if res.Truncated {
			return failure("OutputLimitError: output exceeded the size limit\n")
		}
		e.logger.Warn("harness produced no result",
			"exit_code", res.ExitCode,
			"error", err,
			"stderr", preview(res.Stderr, 200),
		)
		msg := fmt.Sprintf("ExecutionError: interpreter exited with code %d\n", res.ExitCode)
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			msg += stderr + "\n"
		}
		return failure(msg)
	}

	outcome := "success"
	if !result.Success {
		outcome = "error"
	}
	metrics.ExecutionsTotal.WithLabelValues(outcome).Inc()
	return result
}

type harnessPayload struct {
	Success   bool               `json:"success"`
	Output    string             `json:"output"`
	Truncated bool               `json:"truncated"`
	Bindings  map[string]Binding `json:"bindings"`
}

func parseHarnessOutput(stdout, marker string) (Result, error) {
	idx := strings.LastIndex(stdout, marker)
	if idx < 0 {
		return Result{}, fmt.Errorf("result marker not found")
	}
	line := stdout[idx+len(marker):]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}

	var p harnessPayload
	if err := json.Unmarshal([]byte(line), &p); err != nil {
		return Result{}, fmt.Errorf("decoding harness result: %w", err)
	}

	output := p.Output
	if p.Success && p.Truncated {
		output += "\n... (output truncated)"
	}
	return Result{Success: p.Success, Output: output, Bindings: p.Bindings}, nil
}

func failure(msg string) Result {
	return Result{Success: false, Output: msg, Bindings: map[string]Binding{}}
}

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
