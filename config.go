package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/joho/godotenv"
)

// AppConfig describes the application under observation.
type AppConfig struct {
	BaseURL          string `json:"baseUrl"`
	LoginPath        string `json:"loginPath,omitempty"`
	Username         string `json:"username,omitempty"`
	Password         string `json:"-"` // AUTOSPEC_APP_PASSWORD, never in the file
	EmailSelector    string `json:"emailSelector,omitempty"`
	PasswordSelector string `json:"passwordSelector,omitempty"`
	SubmitSelector   string `json:"submitSelector,omitempty"`
	MinElements      int    `json:"minElements,omitempty"`
	Headless         bool   `json:"headless,omitempty"`
	ExecutablePath   string `json:"executablePath,omitempty"`
	NavTimeout       int    `json:"navTimeout,omitempty"` // seconds per navigation
}

// LLMConfig configures the language-model interpreter. When no API key is
// present the keyword interpreter carries the run alone.
type LLMConfig struct {
	APIKey  string `json:"-"` // AUTOSPEC_LLM_API_KEY or OPENAI_API_KEY
	BaseURL string `json:"baseUrl,omitempty"`
	Model   string `json:"model,omitempty"`
}

// HostingConfig configures the target repository for publishing and remote
// page-object mining.
type HostingConfig struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	BaseBranch string `json:"baseBranch,omitempty"`
	Token      string `json:"-"` // AUTOSPEC_GITHUB_TOKEN or GITHUB_TOKEN
}

// PageObjectsConfig says where the reusable-action library lives. A local
// directory wins over the repository path when both are set.
type PageObjectsConfig struct {
	Dir     string `json:"dir,omitempty"`     // local checkout
	RepoDir string `json:"repoDir,omitempty"` // path inside the hosting repository
}

// ExecutionConfig is the main configuration loaded from autospec.config.json
type ExecutionConfig struct {
	App         AppConfig         `json:"app"`
	LLM         *LLMConfig        `json:"llm,omitempty"`
	Hosting     HostingConfig     `json:"hosting"`
	PageObjects PageObjectsConfig `json:"pageObjects,omitempty"`
	Logging     *LoggingConfig    `json:"logging,omitempty"`
	RunTimeout  int               `json:"runTimeout,omitempty"` // seconds, whole pipeline
}

// ResolvedConfig is the fully resolved configuration
type ResolvedConfig struct {
	ProjectRoot string
	Config      ExecutionConfig
}

// ConfigPath returns the path to autospec.config.json
func ConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, "autospec.config.json")
}

// LoadConfig loads and validates autospec.config.json. Secrets never live in
// the file; they come from the environment, with .env loaded first when
// present.
func LoadConfig(projectRoot string) (*ResolvedConfig, error) {
	configPath := ConfigPath(projectRoot)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("autospec.config.json not found\n\nRun 'autospec init' to create one")
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg ExecutionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid autospec.config.json: %w", err)
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
	applySecrets(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &ResolvedConfig{
		ProjectRoot: projectRoot,
		Config:      cfg,
	}, nil
}

// applySecrets pulls credentials and tokens from the environment.
func applySecrets(cfg *ExecutionConfig) {
	cfg.App.Password = firstEnv("AUTOSPEC_APP_PASSWORD", "APP_PASSWORD")
	cfg.Hosting.Token = firstEnv("AUTOSPEC_GITHUB_TOKEN", "GITHUB_TOKEN")

	key := firstEnv("AUTOSPEC_LLM_API_KEY", "OPENAI_API_KEY")
	if key != "" {
		if cfg.LLM == nil {
			cfg.LLM = &LLMConfig{}
		}
		cfg.LLM.APIKey = key
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// applyDefaults fills the optional fields after unmarshal.
func applyDefaults(cfg *ExecutionConfig) {
	if cfg.App.LoginPath == "" {
		cfg.App.LoginPath = "/login"
	}
	if cfg.App.EmailSelector == "" {
		cfg.App.EmailSelector = `[data-testid="emailInput"]`
	}
	if cfg.App.PasswordSelector == "" {
		cfg.App.PasswordSelector = `[data-testid="passwordInput"]`
	}
	if cfg.App.SubmitSelector == "" {
		cfg.App.SubmitSelector = `[data-testid="loginButton"]`
	}
	if cfg.App.MinElements <= 0 {
		cfg.App.MinElements = 3
	}
	if cfg.App.NavTimeout <= 0 {
		cfg.App.NavTimeout = 30
	}
	if cfg.Hosting.BaseBranch == "" {
		cfg.Hosting.BaseBranch = "main"
	}
	if cfg.LLM != nil && cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.PageObjects.RepoDir == "" {
		cfg.PageObjects.RepoDir = "tests/pages"
	}
	if cfg.Logging == nil {
		cfg.Logging = DefaultLoggingConfig()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 300
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *ExecutionConfig) error {
	if cfg.App.BaseURL == "" {
		return fmt.Errorf("app.baseUrl is required")
	}
	u, err := url.Parse(cfg.App.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("app.baseUrl must be an absolute URL, got %q", cfg.App.BaseURL)
	}
	if cfg.Hosting.Owner == "" {
		return fmt.Errorf("hosting.owner is required")
	}
	if cfg.Hosting.Repo == "" {
		return fmt.Errorf("hosting.repo is required")
	}
	return nil
}

// findGitRoot finds the git root from a starting directory
func findGitRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// GetProjectRoot returns the project root (git root or cwd)
func GetProjectRoot() string {
	cwd, _ := os.Getwd()
	return findGitRoot(cwd)
}

// isCommandAvailable checks if a command is available in PATH
func isCommandAvailable(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// WriteDefaultConfig writes a starter autospec.config.json
func WriteDefaultConfig(projectRoot string) error {
	cfg := ExecutionConfig{
		App: AppConfig{
			BaseURL:     "http://localhost:3000",
			LoginPath:   "/login",
			Username:    "qa@example.com",
			MinElements: 3,
			Headless:    true,
			NavTimeout:  30,
		},
		LLM: &LLMConfig{
			Model: "gpt-4o-mini",
		},
		Hosting: HostingConfig{
			Owner:      "your-org",
			Repo:       "your-app",
			BaseBranch: "main",
		},
		PageObjects: PageObjectsConfig{
			RepoDir: "tests/pages",
		},
		Logging:    DefaultLoggingConfig(),
		RunTimeout: 300,
	}

	return AtomicWriteJSON(ConfigPath(projectRoot), cfg)
}

// CheckReadiness validates that the environment can run the full pipeline.
// Returns blocking issues; an empty list means ready.
func CheckReadiness(cfg *ExecutionConfig) []string {
	var issues []string

	if cfg.App.BaseURL == "" || cfg.App.BaseURL == "http://localhost:3000" {
		if cfg.App.BaseURL == "" {
			issues = append(issues, "app.baseUrl is not set")
		}
	}
	if cfg.Hosting.Token == "" {
		issues = append(issues, "no hosting token in environment (AUTOSPEC_GITHUB_TOKEN or GITHUB_TOKEN); publish and remote mining will fail")
	}
	if cfg.Hosting.Owner == "your-org" || cfg.Hosting.Repo == "your-app" {
		issues = append(issues, "hosting.owner/repo still carry the starter values")
	}
	if cfg.App.Password == "" {
		issues = append(issues, "no app password in environment (AUTOSPEC_APP_PASSWORD); authenticated contexts will fail")
	}

	return issues
}

// CheckReadinessWarnings returns non-blocking warnings about the environment.
func CheckReadinessWarnings(cfg *ExecutionConfig) []string {
	var warnings []string

	if cfg.LLM == nil || cfg.LLM.APIKey == "" {
		warnings = append(warnings, "no LLM API key (AUTOSPEC_LLM_API_KEY or OPENAI_API_KEY); the keyword interpreter will carry every run")
	}
	if cfg.App.ExecutablePath != "" {
		if _, err := os.Stat(cfg.App.ExecutablePath); err != nil {
			warnings = append(warnings, fmt.Sprintf("browser executable %q not found", cfg.App.ExecutablePath))
		}
	} else if !isCommandAvailable("google-chrome") && !isCommandAvailable("chromium") && !isCommandAvailable("chromium-browser") {
		warnings = append(warnings, "no Chrome or Chromium found in PATH; set app.executablePath")
	}
	if cfg.PageObjects.Dir != "" {
		if _, err := os.Stat(cfg.PageObjects.Dir); err != nil {
			warnings = append(warnings, fmt.Sprintf("pageObjects.dir %q not found; mining will fall back to the static catalog", cfg.PageObjects.Dir))
		}
	}

	return warnings
}
