package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/shurcooL/githubv4"

	"github.com/naka-gawa/repo-redirector/internal/domain"
)

// repositoriesQuery asks for a single page of repositories owned by a user or
// an organization, ordered by name like the REST listing.
type repositoriesQuery struct {
	RepositoryOwner *struct {
		Login        string
		Repositories struct {
			Nodes []struct {
				Name string
				URL  string `graphql:"url"`
			}
		} `graphql:"repositories(first: 100, ownerAffiliations: OWNER, orderBy: {field: NAME, direction: ASC})"`
	} `graphql:"repositoryOwner(login: $login)"`
}

// GraphQLLister lists repositories through the GitHub GraphQL API.
// Unlike the REST lister it always needs a token.
type GraphQLLister struct {
	client *githubv4.Client
	logger *log.Logger
}

// NewGraphQLLister creates a GraphQLLister. An empty endpoint targets api.github.com.
func NewGraphQLLister(httpClient *http.Client, endpoint string, logger *log.Logger) *GraphQLLister {
	client := githubv4.NewClient(httpClient)
	if endpoint != "" {
		client = githubv4.NewEnterpriseClient(endpoint, httpClient)
	}
	return &GraphQLLister{client: client, logger: logger}
}

func (g *GraphQLLister) ListRepositories(ctx context.Context, account string) ([]domain.Repository, error) {
	var q repositoriesQuery
	variables := map[string]interface{}{"login": githubv4.String(account)}
	if err := g.client.Query(ctx, &q, variables); err != nil {
		// githubv4 includes the status and body of non-200 responses in err.
		g.logger.Printf("GitHub GraphQL Error: %v\n", err)
		return nil, fmt.Errorf("failed to query repositories for %s: %w: %w", account, domain.ErrUpstream, err)
	}

	if q.RepositoryOwner == nil {
		g.logger.Printf("GitHub GraphQL Error: no repository owner %q\n", account)
		return nil, fmt.Errorf("failed to query repositories for %s: %w: unknown owner", account, domain.ErrUpstream)
	}

	nodes := q.RepositoryOwner.Repositories.Nodes
	records := make([]domain.Repository, 0, len(nodes))
	for _, node := range nodes {
		records = append(records, domain.Repository{Name: node.Name, URL: node.URL})
	}
	if err := checkRecords(records); err != nil {
		g.logger.Printf("GitHub GraphQL Error: %v\n", err)
		return nil, fmt.Errorf("failed to query repositories for %s: %w", account, err)
	}
	g.logger.Printf("Fetched %d repositories for %s via GraphQL.\n", len(records), account)
	return records, nil
}
