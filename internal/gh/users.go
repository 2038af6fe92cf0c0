package gh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ErrUnavailable signals that a user's detail record could not be fetched
// (error payload or undecodable body).
var ErrUnavailable = errors.New("user detail unavailable")

var (
	authorTZPattern    = regexp.MustCompile(`(?m)^author .*? \d+ ([+-]\d{4})$`)
	committerTZPattern = regexp.MustCompile(`(?m)^committer .*? \d+ ([+-]\d{4})$`)
)

// UserDetails fetches the profile record for a handle.
func (c *Client) UserDetails(ctx context.Context, login string) (UserDetail, error) {
	url := fmt.Sprintf("%s/users/%s", c.cfg.BaseURL, login)
	resp, err := c.Get(ctx, url)
	if err != nil {
		return UserDetail{}, fmt.Errorf("user details %s: %w", login, err)
	}

	var detail UserDetail
	if err := json.Unmarshal(resp.Body, &detail); err != nil {
		return UserDetail{}, fmt.Errorf("user details %s: %w: %v", login, ErrUnavailable, err)
	}
	if detail.Message != "" {
		return UserDetail{}, fmt.Errorf("user details %s: %w: %s", login, ErrUnavailable, detail.Message)
	}
	if detail.Name == "" {
		detail.Name = login
	}
	return detail, nil
}

// EmailFromCommits scans a bounded number of the user's repositories and
// recent commits for the first author email that is not a platform-generated
// placeholder. Missing or malformed data degrades to "not found" rather than
// an error.
func (c *Client) EmailFromCommits(ctx context.Context, login string) (name, email string, err error) {
	repos, err := c.listRepos(ctx, login)
	if err != nil {
		return "", "", err
	}

	for _, repo := range limitRepos(repos, c.cfg.RepoScanLimit) {
		if repo.Name == "" {
			continue
		}
		url := fmt.Sprintf("%s/repos/%s/%s/commits", c.cfg.BaseURL, login, repo.Name)
		commits, err := c.listCommits(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			// One broken repo must not sink the scan; the next may have
			// usable commits.
			c.logger.Warn("commit scan failed, trying next repo",
				zap.String("login", login),
				zap.String("repo", repo.Name),
				zap.Error(err),
			)
			continue
		}
		if len(commits) > c.cfg.CommitScanLimit {
			commits = commits[:c.cfg.CommitScanLimit]
		}
		for _, commit := range commits {
			candidate := strings.TrimSpace(commit.Commit.Author.Email)
			if candidate == "" || !strings.Contains(candidate, "@") {
				continue
			}
			if isPlatformEmail(candidate) {
				continue
			}
			return strings.TrimSpace(commit.Commit.Author.Name), candidate, nil
		}
	}
	return "", "", nil
}

// TimezoneFromCommits looks for a verified-signature commit among the user's
// recent history and extracts a ±HHMM offset from the signed payload, author
// line preferred.
func (c *Client) TimezoneFromCommits(ctx context.Context, login string) (string, error) {
	repos, err := c.listRepos(ctx, login)
	if err != nil {
		return "", err
	}

	for _, repo := range limitRepos(repos, c.cfg.RepoScanLimit) {
		if repo.Name == "" {
			continue
		}
		url := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=%d", c.cfg.BaseURL, login, repo.Name, c.cfg.CommitScanLimit)
		commits, err := c.listCommits(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.Warn("commit scan failed, trying next repo",
				zap.String("login", login),
				zap.String("repo", repo.Name),
				zap.Error(err),
			)
			continue
		}
		for _, commit := range commits {
			if commit.Verification == nil || !commit.Verification.Verified {
				continue
			}
			payload := commit.Verification.Payload
			if payload == "" {
				continue
			}
			if m := authorTZPattern.FindStringSubmatch(payload); m != nil {
				c.logger.Info("timezone from verified commit",
					zap.String("login", login),
					zap.String("repo", repo.Name),
					zap.String("tz", m[1]),
				)
				return m[1], nil
			}
			if m := committerTZPattern.FindStringSubmatch(payload); m != nil {
				c.logger.Info("committer timezone from verified commit",
					zap.String("login", login),
					zap.String("repo", repo.Name),
					zap.String("tz", m[1]),
				)
				return m[1], nil
			}
		}
	}
	return "", nil
}

func (c *Client) listRepos(ctx context.Context, login string) ([]Repo, error) {
	url := fmt.Sprintf("%s/users/%s/repos", c.cfg.BaseURL, login)
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("list repos %s: %w", login, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	var repos []Repo
	if err := json.Unmarshal(resp.Body, &repos); err != nil {
		c.logger.Warn("repo list was not a list", zap.String("login", login))
		return nil, nil
	}
	return repos, nil
}

func (c *Client) listCommits(ctx context.Context, url string) ([]Commit, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	var commits []Commit
	if err := json.Unmarshal(resp.Body, &commits); err != nil {
		c.logger.Warn("commit list was not a list", zap.String("url", url))
		return nil, nil
	}
	return commits, nil
}

func limitRepos(repos []Repo, limit int) []Repo {
	if len(repos) > limit {
		return repos[:limit]
	}
	return repos
}

// isPlatformEmail reports whether the address is a platform-generated
// placeholder (domain ending in github.com, covering users.noreply.github.com).
func isPlatformEmail(email string) bool {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return false
	}
	at := strings.LastIndex(e, "@")
	if at < 0 {
		return false
	}
	return strings.HasSuffix(e[at+1:], "github.com")
}
