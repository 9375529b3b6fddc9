package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func cmdInit(args []string) {
	force := false
	for _, arg := range args {
		if arg == "-f" || arg == "--force" {
			force = true
		}
	}

	projectRoot := GetProjectRoot()
	configPath := ConfigPath(projectRoot)
	dataDir := filepath.Join(projectRoot, ".autospec")

	if fileExists(configPath) && !force {
		fmt.Fprintf(os.Stderr, "autospec.config.json already exists at %s\n", configPath)
		fmt.Fprintln(os.Stderr, "Use --force to overwrite.")
		os.Exit(1)
	}

	if err := WriteDefaultConfig(projectRoot); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create .autospec directory: %v\n", err)
		os.Exit(1)
	}

	gitignorePath := filepath.Join(dataDir, ".gitignore")
	gitignoreContent := `# autospec temporary files
locks/
logs/
*.tmp
`
	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write .gitignore: %v\n", err)
	}

	fmt.Println("Initialized autospec:")
	fmt.Printf("  Config: %s\n", configPath)
	fmt.Printf("  Data dir: %s\n", dataDir)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit autospec.config.json (app.baseUrl, hosting.owner/repo)")
	fmt.Println("  2. Put secrets in .env or the environment:")
	fmt.Println("       AUTOSPEC_APP_PASSWORD, AUTOSPEC_GITHUB_TOKEN, AUTOSPEC_LLM_API_KEY")
	fmt.Println("  3. Run 'autospec doctor' to check readiness")
	fmt.Println("  4. Run 'autospec generate --ticket ... --criteria ...'")
}

// criteriaFlags is shared by generate and interpret.
type criteriaFlags struct {
	ticket       string
	title        string
	criteria     string
	criteriaFile string
}

func (cf *criteriaFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&cf.ticket, "ticket", "", "Ticket identifier (e.g. SHOP-123)")
	fs.StringVar(&cf.title, "title", "", "Human-readable scenario title")
	fs.StringVar(&cf.criteria, "criteria", "", "Acceptance criteria text")
	fs.StringVar(&cf.criteriaFile, "criteria-file", "", "Read acceptance criteria from a file ('-' for stdin)")
}

// resolve returns the criteria, preferring the file over the inline flag.
func (cf *criteriaFlags) resolve() (AcceptanceCriteria, error) {
	text := cf.criteria
	if cf.criteriaFile != "" {
		var data []byte
		var err error
		if cf.criteriaFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(cf.criteriaFile)
		}
		if err != nil {
			return AcceptanceCriteria{}, fmt.Errorf("reading criteria: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return AcceptanceCriteria{}, fmt.Errorf("no acceptance criteria given; use --criteria or --criteria-file")
	}
	return AcceptanceCriteria{
		Text:        text,
		TicketID:    cf.ticket,
		TicketTitle: cf.title,
	}, nil
}

func cmdGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	var cf criteriaFlags
	cf.register(fs)
	dryRun := fs.Bool("dry-run", false, "Synthesize the test but do not publish")
	timeout := fs.Int("timeout", 0, "Run deadline in seconds (overrides config)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: autospec generate [options]")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	criteria, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	projectRoot := GetProjectRoot()
	cfg, err := LoadConfig(projectRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, w := range CheckReadinessWarnings(&cfg.Config) {
		fmt.Fprintf(os.Stderr, "  Warning: %s\n", w)
	}

	lock := NewLockFile(projectRoot, criteria.TicketID)
	if err := lock.Acquire(criteria.TicketID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer lock.Release()

	logger, err := newProjectLogger(projectRoot, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	cleanup := NewCleanupCoordinator()
	cleanup.SetLock(lock)
	cleanup.SetLogger(logger)
	cleanup.Watch()

	ctx := context.Background()
	pipeline := NewPipeline(ctx, cfg, logger)
	pipeline.SetCleanup(cleanup)

	opts := RunOptions{
		Criteria: criteria,
		DryRun:   *dryRun,
		Timeout:  time.Duration(*timeout) * time.Second,
	}

	result, runErr := pipeline.Run(ctx, opts)
	printRunResult(result, runErr, logger)
	if runErr != nil {
		os.Exit(1)
	}
}

// printRunResult reports the outcome, including the generated test text
// whenever it survived a failed publish.
func printRunResult(result *RunResult, runErr error, logger *RunLogger) {
	if result == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return
	}

	if result.Test != nil {
		fmt.Printf("Generated %q: %d interactions, %d assertions\n",
			result.Test.Title, result.Test.ActionCount, result.Test.AssertionCount)
		for _, w := range result.Test.Warnings {
			fmt.Printf("  Warning: %s\n", w)
		}
	}

	switch {
	case runErr != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)

	case result.PublishFailure != nil:
		fmt.Fprintf(os.Stderr, "Warning: publish failed: %v\n", result.PublishFailure)
		if result.Publish != nil && len(result.Publish.ManualCommands) > 0 {
			fmt.Fprintln(os.Stderr, "\nTo land the test by hand:")
			for _, cmd := range result.Publish.ManualCommands {
				fmt.Fprintf(os.Stderr, "  %s\n", cmd)
			}
		}
		if result.Test != nil {
			fmt.Println("\nGenerated test:")
			fmt.Println(result.Test.Code)
		}

	case result.Skipped:
		fmt.Printf("Skipped: an equivalent test already exists in %s\n", result.Publish.Path)

	case result.Publish != nil:
		fmt.Printf("Published to %s on branch %s\n", result.Publish.Path, result.Publish.Branch)
		fmt.Printf("Pull request: %s\n", result.Publish.PullRequestURL)
		if result.Test != nil && len(result.Test.Stubs) > 0 {
			fmt.Printf("Missing page-object methods (%d) are listed in the pull request body.\n", len(result.Test.Stubs))
		}

	default:
		// Dry run: the artifact is the output.
		if result.Test != nil {
			fmt.Println()
			fmt.Println(result.Test.Code)
			if len(result.Test.Stubs) > 0 {
				fmt.Println("// Missing page-object methods:")
				fmt.Println(RenderStubs(result.Test.Stubs))
			}
		}
	}

	if logger != nil && logger.LogPath() != "" {
		fmt.Printf("\nRun log: %s\n", logger.LogPath())
	}
}

func cmdInterpret(args []string) {
	fs := flag.NewFlagSet("interpret", flag.ExitOnError)
	var cf criteriaFlags
	cf.register(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: autospec interpret [options]")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	criteria, err := cf.resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	projectRoot := GetProjectRoot()
	cfg, err := LoadConfig(projectRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	pipeline := NewPipeline(context.Background(), cfg, nil)
	intent := pipeline.InterpretOnly(context.Background(), criteria)

	data, _ := json.MarshalIndent(intent, "", "  ")
	fmt.Println(string(data))
}

func cmdMine(args []string) {
	fs := flag.NewFlagSet("mine", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output the catalog as JSON")
	fs.Parse(args)

	projectRoot := GetProjectRoot()
	cfg, err := LoadConfig(projectRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	pipeline := NewPipeline(context.Background(), cfg, nil)
	knowledge := pipeline.MineOnly(context.Background())

	if *jsonOutput {
		data, _ := json.MarshalIndent(knowledge, "", "  ")
		fmt.Println(string(data))
		return
	}

	if knowledge.Fallback {
		fmt.Println("Static catalog (mining unavailable or failed):")
	} else {
		fmt.Println("Mined page-object catalog:")
	}
	for namespace, methods := range knowledge.MethodsWithIDs {
		fmt.Printf("\n%s:\n", namespace)
		for _, m := range methods {
			if len(m.TestIDs) > 0 {
				fmt.Printf("  %s  [%s]\n", m.Name, strings.Join(m.TestIDs, ", "))
			} else {
				fmt.Printf("  %s\n", m.Name)
			}
		}
	}
}

func cmdDoctor(args []string) {
	projectRoot := GetProjectRoot()
	issues := 0

	fmt.Println("Autospec Environment Check")
	fmt.Println()

	cfg, err := LoadConfig(projectRoot)
	if err != nil {
		fmt.Printf("✗ autospec.config.json: %v\n", err)
		issues++
	} else {
		fmt.Printf("✓ autospec.config.json found\n")

		for _, issue := range CheckReadiness(&cfg.Config) {
			fmt.Printf("✗ %s\n", issue)
			issues++
		}
		for _, w := range CheckReadinessWarnings(&cfg.Config) {
			fmt.Printf("○ %s\n", w)
		}
	}

	dataDir := filepath.Join(projectRoot, ".autospec")
	if fileExists(dataDir) {
		fmt.Printf("✓ .autospec directory exists\n")
	} else {
		fmt.Printf("○ .autospec directory: not found (run 'autospec init')\n")
	}

	// Writability matters for run logs and locks.
	if fi, statErr := os.Stat(dataDir); statErr == nil && fi.IsDir() {
		testFile := filepath.Join(dataDir, ".write-test")
		if f, writeErr := os.Create(testFile); writeErr != nil {
			fmt.Printf("✗ .autospec directory not writable\n")
			issues++
		} else {
			f.Close()
			os.Remove(testFile)
			fmt.Printf("✓ .autospec directory writable\n")
		}
	}

	fmt.Println()
	if issues > 0 {
		fmt.Printf("%d issue(s) found.\n", issues)
		os.Exit(1)
	}
	fmt.Println("All checks passed.")
}

// newProjectLogger creates the run logger, resolving a relative log dir
// against the project root.
func newProjectLogger(projectRoot string, cfg *ResolvedConfig) (*RunLogger, error) {
	logCfg := *cfg.Config.Logging
	if logCfg.Dir != "" && !filepath.IsAbs(logCfg.Dir) {
		logCfg.Dir = filepath.Join(projectRoot, logCfg.Dir)
	}
	return NewRunLogger(&logCfg)
}
