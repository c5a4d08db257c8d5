// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/naka-gawa/repo-redirector/internal/domain"
)

// Lister defines the behavior of a gateway that lists an account's repositories.
type Lister interface {
	ListRepositories(ctx context.Context, account string) ([]domain.Repository, error)
}

// NewHTTPClient builds the HTTP client shared by the REST and GraphQL listers.
// Secondary rate limits are waited out for at most maxSleep per response.
// The Authorization header is only sent when token is not empty.
func NewHTTPClient(token string, maxSleep time.Duration) (*http.Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(maxSleep, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	if token == "" {
		return &http.Client{Transport: rateLimitWaiter}, nil
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}, nil
}

// RESTLister lists repositories through GET /users/{account}/repos.
type RESTLister struct {
	client *github.Client
	logger *log.Logger
}

// NewRESTLister creates a RESTLister. An empty baseURL keeps go-github's default endpoint.
func NewRESTLister(httpClient *http.Client, baseURL, userAgent string, logger *log.Logger) (*RESTLister, error) {
	client := github.NewClient(httpClient)
	if userAgent != "" {
		client.UserAgent = userAgent
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid API base URL %q: %w", baseURL, err)
		}
		client.BaseURL = u
	}
	return &RESTLister{client: client, logger: logger}, nil
}

// ListRepositories returns the first page of the account's repositories, as the
// upstream orders and sizes it by default.
func (g *RESTLister) ListRepositories(ctx context.Context, account string) ([]domain.Repository, error) {
	repos, resp, err := g.client.Repositories.ListByUser(ctx, account, nil)
	if err != nil {
		g.logFailure(resp, err)
		return nil, fmt.Errorf("failed to list repositories for %s: %w: %w", account, domain.ErrUpstream, err)
	}

	// go-github treats an empty body as success and decodes null to a nil slice.
	// An account without repositories still decodes [] to an empty, non-nil slice.
	if repos == nil {
		g.logger.Println("GitHub API Error: response body is empty or null")
		return nil, fmt.Errorf("failed to list repositories for %s: %w: empty or null listing", account, domain.ErrUpstream)
	}

	records := make([]domain.Repository, 0, len(repos))
	for _, repo := range repos {
		records = append(records, domain.Repository{
			Name: repo.GetName(),
			URL:  repo.GetHTMLURL(),
		})
	}
	if err := checkRecords(records); err != nil {
		g.logger.Printf("GitHub API Error: %v\n", err)
		return nil, fmt.Errorf("failed to list repositories for %s: %w", account, err)
	}
	g.logger.Printf("Fetched %d repositories for %s.\n", len(records), account)
	return records, nil
}

// checkRecords rejects a listing containing a record without a name.
func checkRecords(records []domain.Repository) error {
	for i, rec := range records {
		if rec.Name == "" {
			return fmt.Errorf("%w: record %d has no name", domain.ErrUpstream, i)
		}
	}
	return nil
}

// logFailure writes the upstream status and raw body for operators.
// go-github re-populates the body of error responses, so it can still be read here.
func (g *RESTLister) logFailure(resp *github.Response, err error) {
	if resp == nil || resp.Response == nil {
		g.logger.Printf("GitHub API Error: %v\n", err)
		return
	}
	g.logger.Printf("GitHub API Error: %d - %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// The status was fine, so the body failed to decode.
		g.logger.Printf("Response could not be decoded: %v\n", err)
		return
	}
	if resp.Body == nil {
		return
	}
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		g.logger.Printf("Response: <unreadable: %v>\n", readErr)
		return
	}
	g.logger.Printf("Response: %s\n", body)
}
