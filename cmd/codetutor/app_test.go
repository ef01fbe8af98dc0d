package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelbrown/codetutor/internal/config"
	"github.com/michaelbrown/codetutor/internal/credential"
	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/sandbox"
)

func TestSandboxPolicyFromConfig(t *testing.T) {
	cfg := config.SandboxConfig{
		Backend:        "docker",
		Image:          "python:3.11-alpine",
		Timeout:        3 * time.Second,
		MaxOutputBytes: 4096,
		MaxMemory:      "128m",
	}
	p := sandboxPolicy(cfg)
	if p.MaxTimeout != 3*time.Second || p.MaxOutputBytes != executor.PipeLimit(4096) || p.MaxMemory != "128m" || p.Network {
		t.Errorf("policy = %+v", p)
	}
	if !p.IsImageAllowed("python:3.11-alpine") || !p.IsImageAllowed("python:3.12-slim") {
		t.Errorf("images = %v", p.Images)
	}

	if _, ok := newSandbox(cfg).(*sandbox.DockerSandbox); !ok {
		t.Error("docker backend not selected")
	}
	cfg.Backend = "process"
	if _, ok := newSandbox(cfg).(*sandbox.ProcessSandbox); !ok {
		t.Error("process backend not selected")
	}
}

func TestExecutorOptions(t *testing.T) {
	cfg := config.SandboxConfig{Backend: "process", PythonBin: "python3.12", Image: "python:3.12-slim"}
	if opts := executorOptions(cfg, nil); opts.Image != "" || opts.Interpreter != "python3.12" {
		t.Errorf("process opts = %+v", opts)
	}
	cfg.Backend = "docker"
	if opts := executorOptions(cfg, nil); opts.Image != "python:3.12-slim" {
		t.Errorf("docker opts = %+v", opts)
	}
}

func TestOpenCredentialsBackends(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"sqlite", "file"} {
		t.Run(backend, func(t *testing.T) {
			store, err := openCredentials(config.CredentialsConfig{
				Backend:  backend,
				DBPath:   filepath.Join(dir, "codetutor.db"),
				FilePath: filepath.Join(dir, "credentials.toml"),
			})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer store.Close()

			ctx := context.Background()
			if err := store.Upsert(ctx, credential.Credential{ModelName: "m", APIKey: "sk-1234"}); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			creds, err := store.Get(ctx)
			if err != nil || len(creds) != 1 || creds[0].ModelName != "m" {
				t.Errorf("get = %+v, %v", creds, err)
			}
		})
	}
}
