package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/codetutor/internal/dispatch"
	"github.com/michaelbrown/codetutor/internal/tutor"
	"github.com/michaelbrown/codetutor/internal/tutorial"
)

const (
	colorBlue   = "\033[34m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
	colorReset  = "\033[0m"
)

var practiceCmd = &cobra.Command{
	Use:   "practice [tutorial]",
	Short: "Practice a tutorial's code blocks in the terminal",
	Long: `Walk through the python code blocks of a tutorial. For each block, type
your version and finish it with a line containing only ".".

Commands at the start of an answer:
  skip      move to the next block
  back      return to the previous block
  hint      ask the judge for a hint on your last attempt
  solution  ask the judge for a solution
  quit      exit

Without a tutorial name the available tutorials are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPractice,
}

func init() {
	rootCmd.AddCommand(practiceCmd)
}

func runPractice(cmd *cobra.Command, args []string) error {
	a, err := newApp(io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		fmt.Println("Available tutorials:")
		for _, e := range a.tutorials.List() {
			fmt.Printf("  %s\n", e.Key)
		}
		return nil
	}

	tut, err := a.tutorials.Tutorial(args[0])
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(os.TempDir(), "codetutor_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := &practice{
		in:     rl,
		out:    os.Stdout,
		runner: a.executor,
		eval:   a.tutor,
	}
	return p.run(ctx, tut)
}

// lineReader is the part of readline.Instance a practice session needs.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

type practiceAction int

const (
	actionNext practiceAction = iota
	actionBack
	actionQuit
)

type exercise struct {
	section string
	code    string
}

// practice is one interactive walk through a tutorial.
type practice struct {
	in     lineReader
	out    io.Writer
	runner dispatch.Runner
	eval   dispatch.Evaluator
}

func (p *practice) run(ctx context.Context, tut *tutorial.Tutorial) error {
	var exercises []exercise
	for _, s := range tut.Sections {
		for _, code := range s.CodeBlocks {
			exercises = append(exercises, exercise{section: s.Title, code: code})
		}
	}
	if len(exercises) == 0 {
		fmt.Fprintf(p.out, "%s has no python code blocks to practice.\n", tut.Title)
		return nil
	}

	fmt.Fprintf(p.out, "%s: %d exercise(s)\n", tut.Title, len(exercises))
	for i := 0; i < len(exercises); {
		switch p.exercise(ctx, i+1, exercises[i]) {
		case actionNext:
			i++
		case actionBack:
			if i > 0 {
				i--
			}
		case actionQuit:
			fmt.Fprintln(p.out, "Goodbye!")
			return nil
		}
	}
	fmt.Fprintf(p.out, "%sAll exercises done.%s\n", colorGreen, colorReset)
	return nil
}

func (p *practice) exercise(ctx context.Context, n int, ex exercise) practiceAction {
	fmt.Fprintf(p.out, "\n%s## %s%s\n", colorBlue, ex.section, colorReset)
	fmt.Fprintf(p.out, "Exercise #%d, reference code:\n", n)
	for _, line := range strings.Split(ex.code, "\n") {
		fmt.Fprintf(p.out, "  %s│ %s%s\n", colorGray, line, colorReset)
	}

	var lastCode, lastOutput string
	for {
		code, command, err := p.readAnswer()
		if err != nil {
			return actionQuit
		}

		switch command {
		case "skip":
			return actionNext
		case "back":
			return actionBack
		case "quit", "exit":
			return actionQuit
		case "hint":
			if lastCode == "" {
				fmt.Fprintln(p.out, "Write an attempt first, then ask for a hint.")
				continue
			}
			hint, err := p.eval.Hint(ctx, tutor.HintRequest{Code: lastCode, Expected: ex.code, ActualOutput: lastOutput})
			p.printJudged("Hint", hint, err)
			continue
		case "solution":
			solution, err := p.eval.Solution(ctx, tutor.HintRequest{Code: lastCode, Expected: ex.code, ActualOutput: lastOutput})
			p.printJudged("Solution", solution, err)
			continue
		}

		if strings.TrimSpace(code) == "" {
			continue
		}

		result := p.runner.Execute(ctx, code)
		lastCode, lastOutput = code, result.Output
		if result.Output != "" {
			fmt.Fprint(p.out, result.Output)
			if !strings.HasSuffix(result.Output, "\n") {
				fmt.Fprintln(p.out)
			}
		}
		if !result.Success {
			fmt.Fprintf(p.out, "%sYour code raised an error. Try again.%s\n", colorRed, colorReset)
			continue
		}

		verdict, err := p.eval.Evaluate(ctx, tutor.Submission{
			Reference:  ex.code,
			Learner:    code,
			LearnerRun: &result,
		})
		if err != nil {
			fmt.Fprintf(p.out, "%sevaluation failed: %v%s\n", colorRed, err, colorReset)
			continue
		}
		if verdict.Passed {
			fmt.Fprintf(p.out, "%sCorrect!%s\n", colorGreen, colorReset)
			return actionNext
		}
		fmt.Fprintf(p.out, "%sNot quite: %s%s\n", colorYellow, verdict.Reason, colorReset)
	}
}

// readAnswer reads lines until one containing only ".". A command word typed
// as the first line is returned on its own.
func (p *practice) readAnswer() (code, command string, err error) {
	var lines []string
	p.in.SetPrompt(">>> ")
	defer p.in.SetPrompt(">>> ")

	for {
		line, err := p.in.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return "", "", io.EOF
			}
			return "", "", err
		}

		if len(lines) == 0 {
			switch word := strings.ToLower(strings.TrimSpace(line)); word {
			case "skip", "back", "quit", "exit", "hint", "solution":
				return "", word, nil
			}
		}
		if strings.TrimSpace(line) == "." {
			return strings.Join(lines, "\n"), "", nil
		}
		lines = append(lines, line)
		p.in.SetPrompt("... ")
	}
}

func (p *practice) printJudged(label, text string, err error) {
	if err != nil {
		if errors.Is(err, tutor.ErrJudgeUnavailable) {
			fmt.Fprintf(p.out, "%s%s unavailable: no model configured or reachable (see codetutor models add).%s\n", colorYellow, label, colorReset)
			return
		}
		fmt.Fprintf(p.out, "%s%s failed: %v%s\n", colorRed, label, err, colorReset)
		return
	}
	fmt.Fprintf(p.out, "%s%s:%s\n%s\n", colorBlue, label, colorReset, strings.TrimSpace(text))
}
