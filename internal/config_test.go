package internal

import (
	"bytes"
	"strings"
	"testing"
	"time"
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

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	opts := cfg.Sync.Options(cfg.Document.Path)
	if opts.Document != "issues.org" || opts.State != "all" || !opts.Comments || !opts.Backup || !opts.LinkTag {
		t.Errorf("default options = %+v", opts)
	}
}

func TestProviderConfig(t *testing.T) {
	cfg := ProviderConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty kind should default to github: %v", err)
	}
	if cfg.Kind != "github" {
		t.Errorf("kind = %q", cfg.Kind)
	}

	cfg = ProviderConfig{Kind: "gitea"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "gitea.url is empty") {
		t.Errorf("gitea without url: err = %v", err)
	}

	cfg = ProviderConfig{Kind: "gitlab"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown kind should fail validation")
	}

	cfg = ProviderConfig{Kind: "gitea", Gitea: GiteaConfig{URL: "https://gitea.example.com"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("gitea with url: %v", err)
	}
	p, err := cfg.Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer p.Close()
	if p.Kind() != "gitea" {
		t.Errorf("built kind = %q", p.Kind())
	}
}

func TestSyncConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  SyncConfig
		ok   bool
	}{
		{"empty", SyncConfig{}, true},
		{"repo", SyncConfig{Repo: "owner/name", State: "open"}, true},
		{"bad repo", SyncConfig{Repo: "owner"}, false},
		{"bad state", SyncConfig{State: "merged"}, false},
		{"negative limit", SyncConfig{Limit: -1}, false},
		{"negative interval", SyncConfig{Interval: -time.Second}, false},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestHistoryConfig_PathRequiredWhenEnabled(t *testing.T) {
	cfg := HistoryConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Error("enabled history without path should fail")
	}
	cfg.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled history: %v", err)
	}
}

func TestApplicationConfig_LogFormat(t *testing.T) {
	cfg := ApplicationConfig{LogFormat: "xml", HTTP: HTTPConfig{Port: 8080}}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log format should fail")
	}

	var buf bytes.Buffer
	cfg.LogFormat = LogFormatJSON
	cfg.NewLogger(&buf).Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json output = %q", buf.String())
	}
}
