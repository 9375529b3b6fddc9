package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RunOptions carries the per-run inputs alongside the loaded configuration.
type RunOptions struct {
	Criteria AcceptanceCriteria
	DryRun   bool
	Timeout  time.Duration // overrides config runTimeout when positive
}

// RunResult is everything a run produced. The generated test text is always
// present once synthesis finished, even when publishing failed, so the
// operator can land it by hand.
type RunResult struct {
	RunID   string
	Intent  *Intent
	Test    *GeneratedTest
	Publish *PublishResult
	Skipped bool

	// PublishFailure records a hosting failure that was degraded to a
	// successful run. The generated test and the equivalent manual
	// commands are still returned.
	PublishFailure error
}

// Pipeline wires the five collaborators into one run: interpret and mine in
// parallel, then observe, synthesize, publish.
type Pipeline struct {
	cfg         *ResolvedConfig
	logger      *RunLogger
	interpreter Interpreter      // primary interpreter, nil without an API key
	pageObjects PageObjectSource // nil when neither a local dir nor hosting exists
	hosting     HostingClient    // nil in dry runs without a token
	cleanup     *CleanupCoordinator
}

// SetCleanup registers a coordinator so an interrupt can close the browser.
func (p *Pipeline) SetCleanup(c *CleanupCoordinator) { p.cleanup = c }

// NewPipeline builds a pipeline from resolved configuration. Collaborators
// that cannot be constructed (no LLM key, no hosting token) stay nil and
// their stages degrade to fallbacks.
func NewPipeline(ctx context.Context, cfg *ResolvedConfig, logger *RunLogger) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: logger,
	}
	if li := NewLLMInterpreter(cfg.Config.LLM); li != nil {
		p.interpreter = li
	}

	if cfg.Config.Hosting.Token != "" {
		p.hosting = NewGitHubHosting(ctx, &cfg.Config.Hosting)
	}

	switch {
	case cfg.Config.PageObjects.Dir != "":
		p.pageObjects = &LocalPageObjects{Dir: cfg.Config.PageObjects.Dir}
	case p.hosting != nil:
		p.pageObjects = &RemotePageObjects{Hosting: p.hosting, Dir: cfg.Config.PageObjects.RepoDir}
	}

	return p
}

// Run executes one synthesis run end to end. Interpretation and mining are
// independent and run concurrently; everything downstream needs both. The
// whole run races an internal deadline so a hung page or API call cannot
// wedge the process.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Duration(p.cfg.Config.RunTimeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := &RunResult{RunID: p.logger.RunID()}
	p.logger.RunStart(opts.Criteria.TicketID, opts.Criteria.TicketTitle)

	var (
		wg        sync.WaitGroup
		intent    *Intent
		knowledge *MinedKnowledge
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.logger.StageStart(StageInterpret)
		intent = InterpretCriteria(ctx, p.interpreter, opts.Criteria.Text, p.logger)
		p.logger.StageEnd(StageInterpret, true)
	}()
	go func() {
		defer wg.Done()
		p.logger.StageStart(StageMine)
		knowledge = Mine(ctx, p.pageObjects, p.logger)
		p.logger.StageEnd(StageMine, true)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		p.logger.RunEnd(false, "deadline exceeded before observation")
		return result, fmt.Errorf("run deadline exceeded: %w", err)
	}
	result.Intent = intent

	obs, err := p.observe(ctx, intent)
	if err != nil {
		p.logger.Error("observation failed", err)
		p.logger.RunEnd(false, err.Error())
		return result, err
	}

	p.logger.StageStart(StageSynthesize)
	result.Test = Synthesize(intent, obs, knowledge, opts.Criteria)
	p.logger.StageEnd(StageSynthesize, true)

	if opts.DryRun {
		p.logger.RunEnd(true, "dry run, nothing published")
		return result, nil
	}

	p.publish(ctx, opts, intent, result)

	switch {
	case result.Skipped:
		p.logger.RunEnd(true, "skipped: equivalent test already published")
	case result.PublishFailure != nil:
		p.logger.RunEnd(true, "test generated, publish degraded to manual commands")
	default:
		p.logger.RunEnd(true, result.Publish.PullRequestURL)
	}
	return result, nil
}

// publish runs the final stage. Hosting failures never fail the run: the
// generated test and the equivalent manual commands are recorded on the
// result and the failure is kept in result.PublishFailure.
func (p *Pipeline) publish(ctx context.Context, opts RunOptions, intent *Intent, result *RunResult) {
	if p.hosting == nil {
		path := SpecFile(intent.Context)
		result.PublishFailure = &PublishError{Path: path, Reason: "no hosting token configured"}
		result.Publish = &PublishResult{
			Path:           path,
			ManualCommands: manualCommands(&p.cfg.Config.Hosting, path, opts.Criteria),
		}
		p.logger.Warning("publish skipped: no hosting token configured")
		return
	}

	p.logger.StageStart(StagePublish)
	publisher := NewPublisher(p.hosting, &p.cfg.Config.Hosting, p.logger)
	pub, err := publisher.Publish(ctx, opts.Criteria, intent.Context, result.Test)
	result.Publish = pub
	if errors.Is(err, ErrPublishDuplicate) {
		result.Skipped = true
		p.logger.StageEnd(StagePublish, true)
		return
	}
	if err != nil {
		result.PublishFailure = err
		p.logger.StageEnd(StagePublish, false)
		p.logger.Warning("publish failed, degrading to manual commands: " + err.Error())
		return
	}
	p.logger.StageEnd(StagePublish, true)
}

// observe runs the browser stage, logging state transitions and any page
// exceptions the session collected.
func (p *Pipeline) observe(ctx context.Context, intent *Intent) (*Observation, error) {
	p.logger.StageStart(StageObserve)

	session := NewSession(&p.cfg.Config.App, p.logger)
	if err := session.Launch(ctx); err != nil {
		p.logger.StageEnd(StageObserve, false)
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	if p.cleanup != nil {
		p.cleanup.SetSession(session)
		defer p.cleanup.ClearSession()
	}
	defer session.Close()

	obs, err := session.Observe(ctx, intent)

	for _, msg := range session.ConsoleErrors() {
		p.logger.ConsoleError(msg)
	}
	p.logger.BrowserState(session.State(), currentURL(obs))

	p.logger.StageEnd(StageObserve, err == nil)
	return obs, err
}

func currentURL(obs *Observation) string {
	if obs == nil {
		return ""
	}
	return obs.URL
}

// InterpretOnly runs just the interpretation stage, for inspection.
func (p *Pipeline) InterpretOnly(ctx context.Context, criteria AcceptanceCriteria) *Intent {
	return InterpretCriteria(ctx, p.interpreter, criteria.Text, p.logger)
}

// MineOnly runs just the mining stage, for inspection.
func (p *Pipeline) MineOnly(ctx context.Context) *MinedKnowledge {
	return Mine(ctx, p.pageObjects, p.logger)
}
