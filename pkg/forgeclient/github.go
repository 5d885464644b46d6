// Package forgeclient implements prpublisher.ForgeClient against GitHub's
// REST API, so a deployment that wants real pull requests opened has a
// concrete client to wire into the composition root.
package forgeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// GitHubClient opens pull requests via the GitHub REST API. It satisfies
// prpublisher.ForgeClient.
type GitHubClient struct {
	httpClient *http.Client
	token      string
	baseURL    string // overridable in tests; defaults to https://api.github.com
}

// NewGitHubClient builds a client authenticating with token (a GitHub
// personal access token or installation token).
func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		baseURL:    "https://api.github.com",
	}
}

// repoSlugPattern matches both HTTPS and SSH GitHub remote URL forms:
// https://github.com/{owner}/{repo}(.git) and git@github.com:{owner}/{repo}(.git).
var repoSlugPattern = regexp.MustCompile(`github\.com[/:]([^/]+)/([^/]+?)(\.git)?/?$`)

// parseOwnerRepo extracts owner/repo from a GitHub remote URL.
func parseOwnerRepo(remoteURL string) (owner, repo string, err error) {
	matches := repoSlugPattern.FindStringSubmatch(remoteURL)
	if matches == nil {
		return "", "", fmt.Errorf("forgeclient: %q is not a GitHub remote URL", remoteURL)
	}
	return matches[1], matches[2], nil
}

type createPullRequestBody struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body"`
}

type pullRequestResponse struct {
	HTMLURL string `json:"html_url"`
}

type githubErrorResponse struct {
	Message string `json:"message"`
}

// OpenPullRequest creates a pull request from sourceBranch into
// destinationBranch on the repository identified by remoteURL.
func (c *GitHubClient) OpenPullRequest(ctx context.Context, remoteURL, sourceBranch, destinationBranch, title, body string) (string, error) {
	owner, repo, err := parseOwnerRepo(remoteURL)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(createPullRequestBody{
		Title: title,
		Head:  sourceBranch,
		Base:  destinationBranch,
		Body:  body,
	})
	if err != nil {
		return "", fmt.Errorf("forgeclient: encoding pull request body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("forgeclient: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("forgeclient: opening pull request for %s/%s: %w", owner, repo, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("forgeclient: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var ghErr githubErrorResponse
		_ = json.Unmarshal(respBody, &ghErr)
		if ghErr.Message == "" {
			ghErr.Message = strings.TrimSpace(string(respBody))
		}
		return "", fmt.Errorf("forgeclient: GitHub returned %d opening pull request: %s", resp.StatusCode, ghErr.Message)
	}

	var pr pullRequestResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return "", fmt.Errorf("forgeclient: decoding pull request response: %w", err)
	}
	return pr.HTMLURL, nil
}
