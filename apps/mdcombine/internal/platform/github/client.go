// Package github provides the factory for authenticated GitHub API clients.
// Callers wrap the returned *github.Client with the adapter in
// apps/mdcombine/internal/combine/adapters to read repository contents.
package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

// NewTokenClient creates a *github.Client authenticated with a personal access
// token. An empty token yields an anonymous client. Pass baseURL="" for the
// real GitHub API, or a custom URL (e.g. "http://localhost:9090") for GitHub
// Enterprise or the mock server. timeout bounds every request; zero disables it.
func NewTokenClient(token, baseURL string, timeout time.Duration) *gogithub.Client {
	httpClient := &http.Client{Timeout: timeout}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = timeout
	}
	c := gogithub.NewClient(httpClient)
	applyBaseURL(c, baseURL)
	return c
}

func applyBaseURL(c *gogithub.Client, baseURL string) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" || baseURL == DefaultAPIURL {
		return
	}
	u, err := url.Parse(baseURL + "/")
	if err != nil {
		return
	}
	c.BaseURL = u
}
