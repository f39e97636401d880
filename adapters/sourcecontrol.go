package adapters

import (
	"context"
	"fmt"
	"log"
	"strings"

	gh "github.com/google/go-github/v80/github"
)

const sourceControlService = "source_control"

// SourceControl reads pull requests, issues and repository activity through
// the GitHub API. Repo-scoped calls target the configured owner/name pair.
type SourceControl struct {
	gh     *gh.Client
	owner  string
	repo   string
	cache  *cache
	logger *log.Logger
}

func NewSourceControl(token, repo string, logger *log.Logger) (*SourceControl, error) {
	if logger == nil {
		logger = log.Default()
	}
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("repository must be owner/name, got %q", repo)
	}
	return &SourceControl{
		gh:     gh.NewClient(nil).WithAuthToken(token),
		owner:  owner,
		repo:   name,
		cache:  newCache(defaultCacheTTL),
		logger: logger,
	}, nil
}

// PullRequestsToReview returns open pull requests where the authenticated
// user's review is requested.
func (s *SourceControl) PullRequestsToReview(ctx context.Context) ([]map[string]any, error) {
	return s.searchIssues(ctx, "is:pr is:open review-requested:@me")
}

// MyPullRequests returns the authenticated user's open pull requests.
func (s *SourceControl) MyPullRequests(ctx context.Context) ([]map[string]any, error) {
	return s.searchIssues(ctx, "is:pr is:open author:@me")
}

// AssignedIssues returns open issues assigned to the authenticated user.
func (s *SourceControl) AssignedIssues(ctx context.Context) ([]map[string]any, error) {
	return s.searchIssues(ctx, "is:issue is:open assignee:@me")
}

// RecentCommits returns the latest commits on the configured repository.
func (s *SourceControl) RecentCommits(ctx context.Context, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	cacheKey := fmt.Sprintf("commits:%d", limit)
	if cached, ok := s.cache.get(cacheKey); ok {
		return cached.([]map[string]any), nil
	}

	commits, _, err := s.gh.Repositories.ListCommits(ctx, s.owner, s.repo, &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, apiError(sourceControlService, "list commits for %s/%s: %w", s.owner, s.repo, err)
	}

	records := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		record := map[string]any{
			"sha":     shortSHA(commit.GetSHA()),
			"message": firstLine(commit.GetCommit().GetMessage()),
			"author":  commit.GetCommit().GetAuthor().GetName(),
			"date":    commit.GetCommit().GetAuthor().GetDate().Format("2006-01-02 15:04"),
		}
		records = append(records, record)
	}

	s.cache.put(cacheKey, records)
	return records, nil
}

// RepoStats returns headline numbers for the configured repository.
func (s *SourceControl) RepoStats(ctx context.Context) (map[string]any, error) {
	if cached, ok := s.cache.get("repo_stats"); ok {
		return cached.(map[string]any), nil
	}

	repository, _, err := s.gh.Repositories.Get(ctx, s.owner, s.repo)
	if err != nil {
		return nil, apiError(sourceControlService, "get repository %s/%s: %w", s.owner, s.repo, err)
	}

	stats := map[string]any{
		"full_name":   repository.GetFullName(),
		"description": repository.GetDescription(),
		"stars":       repository.GetStargazersCount(),
		"forks":       repository.GetForksCount(),
		"open_issues": repository.GetOpenIssuesCount(),
		"language":    repository.GetLanguage(),
		"pushed_at":   repository.GetPushedAt().Format("2006-01-02 15:04"),
	}

	s.cache.put("repo_stats", stats)
	return stats, nil
}

func (s *SourceControl) searchIssues(ctx context.Context, query string) ([]map[string]any, error) {
	if cached, ok := s.cache.get("search:" + query); ok {
		return cached.([]map[string]any), nil
	}

	result, _, err := s.gh.Search.Issues(ctx, query, &gh.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: 30},
	})
	if err != nil {
		return nil, apiError(sourceControlService, "search %q: %w", query, err)
	}

	records := make([]map[string]any, 0, len(result.Issues))
	for _, issue := range result.Issues {
		records = append(records, map[string]any{
			"number":     issue.GetNumber(),
			"title":      issue.GetTitle(),
			"repository": repoFromURL(issue.GetRepositoryURL()),
			"url":        issue.GetHTMLURL(),
			"updated_at": issue.GetUpdatedAt().Format("2006-01-02 15:04"),
		})
	}

	s.cache.put("search:"+query, records)
	return records, nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}

// repoFromURL extracts owner/name from an API repository URL.
func repoFromURL(url string) string {
	const marker = "/repos/"
	if i := strings.Index(url, marker); i >= 0 {
		return url[i+len(marker):]
	}
	return url
}
