package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
)

const fileName = "taskmanager.yml"

// Config models taskmanager.yml.
type Config struct {
	Policy struct {
		TaskView                  string `yaml:"task_view"`
		ProjectInviteRequiresTeam *bool  `yaml:"project_invite_requires_team"`
	} `yaml:"policy"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig is one event relay target.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// AuthPolicy converts the policy section into the engine's policy flags.
func (c *Config) AuthPolicy() auth.Policy {
	p := auth.DefaultPolicy()
	if c == nil {
		return p
	}
	if tv, err := auth.ParseTaskView(c.Policy.TaskView); err == nil {
		p.TaskView = tv
	}
	if c.Policy.ProjectInviteRequiresTeam != nil {
		p.ProjectInviteRequiresTeam = *c.Policy.ProjectInviteRequiresTeam
	}
	return p
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := auth.ParseTaskView(c.Policy.TaskView); err != nil {
		return fmt.Errorf("config.policy: %w", err)
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		u, err := url.Parse(hook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("config.webhooks[%d].url must be an http(s) url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must be positive", i)
		}
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("config.webhooks[%d] has empty event type", i)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the config written by GenerateDefault.
func Default() *Config {
	cfg, err := FromYAML([]byte(defaultTemplate))
	if err != nil {
		panic(err)
	}
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `policy:
  # assigned: task members plus project admins and owners see a task.
  # project: anyone who can see the project sees its tasks.
  task_view: assigned
  # Project invitees must already belong to the project's team.
  project_invite_requires_team: true

webhooks: []
#  - url: https://example.com/hooks/taskmanager
#    events: [member.promoted, member.removed]
#    secret: change-me
#    timeout_seconds: 5
`
