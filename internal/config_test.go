package internal

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestResolvePaths_Precedence(t *testing.T) {
	home := t.TempDir()
	cases := []struct {
		name     string
		root     string
		env      map[string]string
		wantRoot string
	}{
		{"config wins", "/srv/research", map[string]string{"RESEARCH_WORKSPACE": "/env/a"}, "/srv/research"},
		{"research env", "", map[string]string{"RESEARCH_WORKSPACE": "/env/a", "COWORK_WORKSPACE": "/env/b"}, "/env/a"},
		{"cowork env", "", map[string]string{"COWORK_WORKSPACE": "/env/b"}, "/env/b"},
		{"blank env skipped", "", map[string]string{"RESEARCH_WORKSPACE": " ", "COWORK_WORKSPACE": "/env/b"}, "/env/b"},
		{"home default", "", nil, filepath.Join(home, "Research")},
		{"tilde", "~/notes", nil, filepath.Join(home, "notes")},
	}
	for _, tc := range cases {
		cfg := NewDefaultConfig()
		cfg.Workspace.Root = tc.root
		if err := cfg.ResolvePaths(lookupFrom(tc.env), home); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if cfg.Workspace.Root != tc.wantRoot {
			t.Errorf("%s: root = %q, want %q", tc.name, cfg.Workspace.Root, tc.wantRoot)
		}
		if want := filepath.Join(tc.wantRoot, DefaultDBName); cfg.SQLite.Path != want {
			t.Errorf("%s: db = %q, want %q", tc.name, cfg.SQLite.Path, want)
		}
	}
}

func TestResolvePaths_ExplicitDBAndRelativeRoot(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Workspace.Root = "ws"
	cfg.SQLite.Path = "/var/lib/fathom.db"
	if err := cfg.ResolvePaths(lookupFrom(nil), ""); err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(cfg.Workspace.Root) || filepath.Base(cfg.Workspace.Root) != "ws" {
		t.Errorf("root = %q, want absolute .../ws", cfg.Workspace.Root)
	}
	if cfg.SQLite.Path != "/var/lib/fathom.db" {
		t.Errorf("db = %q", cfg.SQLite.Path)
	}
}

func TestResolvePaths_NoHome(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.ResolvePaths(lookupFrom(nil), ""); err == nil {
		t.Fatal("expected error without root, env or home")
	}
}

func TestFullConfig_DefaultsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
