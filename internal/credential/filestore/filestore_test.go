package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/michaelbrown/codetutor/internal/credential"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.toml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestMissingFileIsEmpty(t *testing.T) {
	s, _ := testStore(t)
	got, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d credentials, want 0", len(got))
	}
}

func TestUpsertPersistsInOrder(t *testing.T) {
	s, path := testStore(t)
	ctx := context.Background()

	s.Upsert(ctx, credential.Credential{ModelName: "zeta", BaseURL: "https://z", APIKey: "k1"})
	s.Upsert(ctx, credential.Credential{ModelName: "alpha", APIKey: "k2"})
	s.Upsert(ctx, credential.Credential{ModelName: "zeta", APIKey: "k3"})

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || got[0].ModelName != "zeta" || got[1].ModelName != "alpha" {
		t.Fatalf("got %+v", got)
	}
	if got[0].APIKey != "k3" || got[0].BaseURL != "https://z" {
		t.Errorf("zeta = %+v", got[0])
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("credentials file mode = %o, want owner-only", perm)
	}
}

func TestDeleteMissing(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	s.Upsert(ctx, credential.Credential{ModelName: "a", APIKey: "k"})
	if err := s.Delete(ctx, "b"); !errors.Is(err, credential.ErrNotFound) {
		t.Errorf("Delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ := s.Get(ctx)
	if len(got) != 0 {
		t.Errorf("got %d credentials after delete", len(got))
	}
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.toml")
	os.WriteFile(path, []byte("[[models]\nbroken"), 0o600)

	_, err := Open(path)
	if err == nil || !strings.Contains(err.Error(), "credentials.toml") {
		t.Errorf("Open = %v, want parse error naming the file", err)
	}
}
