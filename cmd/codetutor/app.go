package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/michaelbrown/codetutor/internal/config"
	"github.com/michaelbrown/codetutor/internal/credential"
	"github.com/michaelbrown/codetutor/internal/credential/filestore"
	"github.com/michaelbrown/codetutor/internal/credential/sqlite"
	"github.com/michaelbrown/codetutor/internal/dispatch"
	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/logging"
	"github.com/michaelbrown/codetutor/internal/protocol"
	"github.com/michaelbrown/codetutor/internal/sandbox"
	"github.com/michaelbrown/codetutor/internal/tutor"
	"github.com/michaelbrown/codetutor/internal/tutorial"
)

// app holds the components every subcommand shares.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	creds      credential.Store
	executor   *executor.Executor
	tutor      *tutor.Tutor
	tutorials  *tutorial.Provider
	dispatcher *dispatch.Dispatcher

	logCloser io.Closer
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	return cfg, nil
}

// newApp wires configuration, logging, storage, execution and evaluation.
// Logs go to logOut; stdout is reserved for protocol output.
func newApp(logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(cfg.Log, logOut)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	slog.SetDefault(logger)

	creds, err := openCredentials(cfg.Credentials)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	exec := executor.New(newSandbox(cfg.Sandbox), executorOptions(cfg.Sandbox, logger))

	catalog := tutorial.DefaultCatalog()
	if cfg.Tutorials.Catalog != "" {
		catalog, err = tutorial.LoadCatalog(cfg.Tutorials.Catalog)
		if err != nil {
			creds.Close()
			logCloser.Close()
			return nil, err
		}
	}
	tutorials := tutorial.NewProvider(cfg.Tutorials.NotesDir, catalog)

	judge := tutor.NewStoreJudge(creds, tutor.JudgeConfig{
		DefaultBaseURL: cfg.Judge.DefaultBaseURL,
		DefaultModel:   cfg.Judge.DefaultModel,
		SystemPrompt:   cfg.Judge.SystemPrompt,
		Temperature:    cfg.Judge.Temperature,
		DialTimeout:    cfg.Judge.DialTimeout,
	}, tutor.WithJudgeLogger(logger))

	t := tutor.New(judge, exec, tutor.Config{
		Tokens: tutor.VerdictTokens{
			Pass:            cfg.Judge.PassToken,
			ReasonDelimiter: cfg.Judge.ReasonDelimiter,
		},
		EvaluateMaxTokens: cfg.Judge.EvaluateMaxTokens,
		HintMaxTokens:     cfg.Judge.HintMaxTokens,
		SolutionMaxTokens: cfg.Judge.SolutionMaxTokens,
	}, logger)

	d := dispatch.New(dispatch.Deps{
		Content:   tutorials,
		Creds:     creds,
		Runner:    exec,
		Evaluator: t,
		Logger:    logger,
	})

	return &app{
		cfg:        cfg,
		logger:     logger,
		creds:      creds,
		executor:   exec,
		tutor:      t,
		tutorials:  tutorials,
		dispatcher: d,
		logCloser:  logCloser,
	}, nil
}

func (a *app) encoder() *protocol.Encoder {
	return &protocol.Encoder{
		Threshold: a.cfg.Transport.ChunkThreshold,
		ChunkSize: a.cfg.Transport.ChunkSize,
		Delay:     a.cfg.Transport.ChunkDelay,
	}
}

func (a *app) Close() {
	if err := a.creds.Close(); err != nil {
		a.logger.Error("closing credential store", "error", err)
	}
	a.logCloser.Close()
}

func openCredentials(cfg config.CredentialsConfig) (credential.Store, error) {
	switch cfg.Backend {
	case "file":
		store, err := filestore.Open(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("opening credential file: %w", err)
		}
		return store, nil
	default:
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening credential database: %w", err)
		}
		return store, nil
	}
}

func sandboxPolicy(cfg config.SandboxConfig) sandbox.Policy {
	policy := sandbox.DefaultPolicy()
	policy.MaxTimeout = cfg.Timeout
	// max_output_bytes bounds what the learner's code prints; the pipe also
	// carries the encoded result around it
	policy.MaxOutputBytes = executor.PipeLimit(cfg.MaxOutputBytes)
	policy.MaxMemory = cfg.MaxMemory
	policy.Network = cfg.Network
	if cfg.Image != "" && !policy.IsImageAllowed(cfg.Image) {
		policy.Images = append(policy.Images, cfg.Image)
	}
	return policy
}

func newSandbox(cfg config.SandboxConfig) sandbox.Sandbox {
	if cfg.Backend == "docker" {
		return sandbox.NewDockerSandbox(sandboxPolicy(cfg))
	}
	return sandbox.NewProcessSandbox(sandboxPolicy(cfg))
}

func executorOptions(cfg config.SandboxConfig, logger *slog.Logger) executor.Options {
	opts := executor.Options{
		Interpreter:    cfg.PythonBin,
		MaxOutputChars: cfg.MaxOutputBytes,
		Logger:         logger,
	}
	if cfg.Backend == "docker" {
		opts.Image = cfg.Image
	}
	return opts
}
