package config_test

import (
	"strings"
	"testing"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/config"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
)

func TestDefaultPolicy(t *testing.T) {
	cfg := config.Default()
	if got := cfg.AuthPolicy(); got != auth.DefaultPolicy() {
		t.Fatalf("default policy mismatch: %+v", got)
	}
	if !strings.Contains(config.GenerateDefault(), "task_view: assigned") {
		t.Fatalf("template should document task_view")
	}
}

func TestFromYAMLValidates(t *testing.T) {
	cases := map[string]string{
		"bad task_view": "policy:\n  task_view: everyone\n",
		"missing url":   "webhooks:\n  - events: [member.removed]\n",
		"bad scheme":    "webhooks:\n  - url: ftp://example.com\n",
		"empty event":   "webhooks:\n  - url: http://example.com\n    events: [\"\"]\n",
	}
	for name, yml := range cases {
		if _, err := config.FromYAML([]byte(yml)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	cfg, err := config.FromYAML([]byte("policy:\n  project_invite_requires_team: false\nwebhooks:\n  - url: https://example.com/hook\n"))
	if err != nil {
		t.Fatalf("valid config: %v", err)
	}
	p := cfg.AuthPolicy()
	if p.ProjectInviteRequiresTeam || p.TaskView != auth.TaskViewAssigned {
		t.Fatalf("unexpected policy %+v", p)
	}
	if len(cfg.Webhooks) != 1 {
		t.Fatalf("expected one webhook")
	}
}
