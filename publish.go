package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
)

// ErrRepoFileNotFound is returned by HostingClient.ReadFile when the path
// does not exist on the requested branch.
var ErrRepoFileNotFound = errors.New("repository file not found")

// workflowPath is where the CI workflow lands when the repository has none.
const workflowPath = ".github/workflows/e2e.yml"

// HostingClient is the narrow surface the publisher and the remote miner
// need from a code hosting service.
type HostingClient interface {
	ReadFile(ctx context.Context, path string) (content string, sha string, err error)
	ListDir(ctx context.Context, dir string) ([]string, error)
	CreateOrUpdateFile(ctx context.Context, path, branch, message string, content []byte, sha string) error
	CreateBranch(ctx context.Context, name, from string) error
	CreatePullRequest(ctx context.Context, title, body, head, base string, draft bool) (string, error)
}

// githubHosting implements HostingClient against the GitHub API.
type githubHosting struct {
	client *github.Client
	owner  string
	repo   string
	ref    string // branch reads resolve against
}

// NewGitHubHosting builds a hosting client from the hosting configuration.
func NewGitHubHosting(ctx context.Context, cfg *HostingConfig) HostingClient {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	return &githubHosting{
		client: github.NewClient(oauth2.NewClient(ctx, ts)),
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		ref:    cfg.BaseBranch,
	}
}

func (g *githubHosting) ReadFile(ctx context.Context, path string) (string, string, error) {
	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: g.ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", "", ErrRepoFileNotFound
		}
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	if file == nil {
		return "", "", fmt.Errorf("reading %s: path is a directory", path)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return content, file.GetSHA(), nil
}

func (g *githubHosting) ListDir(ctx context.Context, dir string) ([]string, error) {
	_, entries, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, dir,
		&github.RepositoryContentGetOptions{Ref: g.ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, ErrRepoFileNotFound
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.GetType() == "file" {
			names = append(names, e.GetName())
		}
	}
	return names, nil
}

func (g *githubHosting) CreateOrUpdateFile(ctx context.Context, path, branch, message string, content []byte, sha string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		Branch:  github.Ptr(branch),
	}
	var err error
	if sha == "" {
		_, _, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, path, opts)
	} else {
		opts.SHA = github.Ptr(sha)
		_, _, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, path, opts)
	}
	if err != nil {
		return fmt.Errorf("writing %s on %s: %w", path, branch, err)
	}
	return nil
}

func (g *githubHosting) CreateBranch(ctx context.Context, name, from string) error {
	base, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "refs/heads/"+from)
	if err != nil {
		return fmt.Errorf("resolving base branch %s: %w", from, err)
	}
	_, resp, err := g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + name),
		Object: &github.GitObject{SHA: base.Object.SHA},
	})
	if err != nil {
		// An existing branch from a retried run is fine; the file write
		// lands on it.
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			return nil
		}
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

func (g *githubHosting) CreatePullRequest(ctx context.Context, title, body, head, base string, draft bool) (string, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
		Draft: github.Ptr(draft),
	})
	if err != nil {
		return "", fmt.Errorf("opening pull request: %w", err)
	}
	return pr.GetHTMLURL(), nil
}

// PublishResult describes what landed in the repository, or what the
// operator must run by hand when the hosting service failed.
type PublishResult struct {
	Path           string
	Branch         string
	PullRequestURL string
	Skipped        bool
	ManualCommands []string
}

// Publisher appends generated tests to the per-context spec files and opens
// a draft pull request for review.
type Publisher struct {
	hosting HostingClient
	cfg     *HostingConfig
	logger  *RunLogger
}

// NewPublisher wires a publisher to its hosting collaborator.
func NewPublisher(hosting HostingClient, cfg *HostingConfig, logger *RunLogger) *Publisher {
	return &Publisher{hosting: hosting, cfg: cfg, logger: logger}
}

// Publish lands the generated test in the context's spec file on a fresh
// branch and opens a draft pull request. An equivalent existing test returns
// ErrPublishDuplicate with Skipped set. A hosting failure returns a
// PublishError alongside manual commands that reproduce the landing by hand.
func (p *Publisher) Publish(ctx context.Context, criteria AcceptanceCriteria, target Context, gen *GeneratedTest) (*PublishResult, error) {
	path := SpecFile(target)
	result := &PublishResult{Path: path}

	existing, sha, err := p.hosting.ReadFile(ctx, path)
	if err != nil && !errors.Is(err, ErrRepoFileNotFound) {
		result.ManualCommands = manualCommands(p.cfg, path, criteria)
		return result, &PublishError{Path: path, Reason: "reading existing spec file", Err: err}
	}

	if isDuplicateTest(existing, criteria) {
		result.Skipped = true
		p.logger.PublishSkipped(path)
		return result, ErrPublishDuplicate
	}

	content := existing
	if content == "" {
		content = getTemplate("spec-header.ts", map[string]string{
			"context": string(target),
		})
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += "\n" + gen.Code

	branch := branchName(criteria)
	result.Branch = branch
	if err := p.hosting.CreateBranch(ctx, branch, p.cfg.BaseBranch); err != nil {
		result.ManualCommands = manualCommands(p.cfg, path, criteria)
		return result, &PublishError{Path: path, Reason: "creating branch", Err: err}
	}

	message := fmt.Sprintf("test: add generated scenario for %s", displayTicket(criteria))
	if err := p.hosting.CreateOrUpdateFile(ctx, path, branch, message, []byte(content), sha); err != nil {
		result.ManualCommands = manualCommands(p.cfg, path, criteria)
		return result, &PublishError{Path: path, Reason: "writing spec file", Err: err}
	}

	if err := p.ensureWorkflow(ctx, branch); err != nil {
		// The test itself landed; a missing workflow is worth a warning,
		// not a failed run.
		p.logger.Warning("workflow emission failed: " + err.Error())
	}

	body := pullRequestBody(criteria, gen)
	url, err := p.hosting.CreatePullRequest(ctx,
		fmt.Sprintf("Generated e2e test: %s", displayTicket(criteria)),
		body, branch, p.cfg.BaseBranch, true)
	if err != nil {
		result.ManualCommands = manualCommands(p.cfg, path, criteria)
		return result, &PublishError{Path: path, Reason: "opening pull request", Err: err}
	}
	result.PullRequestURL = url

	p.logger.PublishDone(url)
	return result, nil
}

// ensureWorkflow emits the CI workflow on the branch when the repository has
// none on the base branch.
func (p *Publisher) ensureWorkflow(ctx context.Context, branch string) error {
	_, _, err := p.hosting.ReadFile(ctx, workflowPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrRepoFileNotFound) {
		return err
	}
	workflow := getTemplate("workflow.yml", map[string]string{
		"baseBranch": p.cfg.BaseBranch,
	})
	return p.hosting.CreateOrUpdateFile(ctx, workflowPath, branch,
		"ci: add generated e2e workflow", []byte(workflow), "")
}

// testTitleRe extracts declared test titles from existing spec file text.
var testTitleRe = regexp.MustCompile(`test\(\s*'((?:[^'\\]|\\.)*)'`)

// isDuplicateTest reports whether the existing spec file already holds an
// equivalent test: either a title carrying the normalized ticket identifier,
// or one whose first three significant title words match.
func isDuplicateTest(existing string, criteria AcceptanceCriteria) bool {
	if existing == "" {
		return false
	}
	id := normalizeTicketID(criteria.TicketID)
	want := firstSignificantWords(criteria.TicketTitle, 3)
	for _, m := range testTitleRe.FindAllStringSubmatch(existing, -1) {
		title := m[1]
		if id != "" && strings.Contains(strings.ToUpper(title), id) {
			return true
		}
		if len(want) > 0 && wordsEqual(firstSignificantWords(title, 3), want) {
			return true
		}
	}
	return false
}

// normalizeTicketID canonicalizes a ticket identifier for comparison and
// display: uppercase, with separator runs collapsed to a single dash.
func normalizeTicketID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToUpper(id) {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

var titleStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true,
	"from": true, "that": true, "into": true, "can": true,
	"should": true, "when": true, "then": true, "user": true,
}

var wordRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

// firstSignificantWords returns up to n lowercase words from the title,
// skipping short words, stopwords and ticket-identifier prefixes.
func firstSignificantWords(title string, n int) []string {
	var out []string
	for _, w := range wordRe.FindAllString(title, -1) {
		w = strings.ToLower(w)
		if len(w) <= 2 || titleStopwords[w] {
			continue
		}
		out = append(out, w)
		if len(out) == n {
			break
		}
	}
	return out
}

func wordsEqual(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// branchName derives the publish branch from the ticket, falling back to the
// first title words when no identifier exists.
func branchName(criteria AcceptanceCriteria) string {
	id := normalizeTicketID(criteria.TicketID)
	if id == "" {
		words := firstSignificantWords(criteria.TicketTitle, 3)
		if len(words) == 0 {
			words = []string{"scenario"}
		}
		id = strings.ToUpper(strings.Join(words, "-"))
	}
	return "autospec/" + strings.ToLower(id)
}

func displayTicket(criteria AcceptanceCriteria) string {
	id := normalizeTicketID(criteria.TicketID)
	title := strings.TrimSpace(criteria.TicketTitle)
	switch {
	case id != "" && title != "":
		return id + " " + title
	case id != "":
		return id
	case title != "":
		return title
	}
	return "untitled scenario"
}

// pullRequestBody renders the review summary: the criteria, the coverage
// counts, any warnings, and stubs for reusable actions that do not exist yet.
func pullRequestBody(criteria AcceptanceCriteria, gen *GeneratedTest) string {
	var b strings.Builder
	b.WriteString("Generated from acceptance criteria:\n\n")
	for _, line := range strings.Split(strings.TrimSpace(criteria.Text), "\n") {
		b.WriteString("> " + line + "\n")
	}
	fmt.Fprintf(&b, "\nSteps: %d interactions, %d assertions.\n", gen.ActionCount, gen.AssertionCount)
	if len(gen.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range gen.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	if len(gen.Stubs) > 0 {
		b.WriteString("\nMissing page-object methods (add to review):\n\n```ts\n")
		b.WriteString(RenderStubs(gen.Stubs))
		b.WriteString("```\n")
	}
	return b.String()
}

// manualCommands renders the git commands an operator runs when the hosting
// service was unreachable. The generated test text lives in the run result.
func manualCommands(cfg *HostingConfig, path string, criteria AcceptanceCriteria) []string {
	branch := branchName(criteria)
	return []string{
		fmt.Sprintf("git clone git@github.com:%s/%s.git && cd %s", cfg.Owner, cfg.Repo, cfg.Repo),
		fmt.Sprintf("git checkout -b %s %s", branch, cfg.BaseBranch),
		fmt.Sprintf("cat generated-test.ts >> %s", path),
		fmt.Sprintf("git add %s && git commit -m 'test: add generated scenario for %s'", path, displayTicket(criteria)),
		fmt.Sprintf("git push origin %s", branch),
	}
}
