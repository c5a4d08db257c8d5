// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-redirector/internal/cache"
	"github.com/naka-gawa/repo-redirector/internal/config"
	"github.com/naka-gawa/repo-redirector/internal/gateway"
	"github.com/naka-gawa/repo-redirector/internal/usecase"
)

var rootCmd = &cobra.Command{
	Use:   "repo-redirector",
	Short: "Redirects short links to GitHub repository pages.",
	Long: `repo-redirector answers /<name> with a permanent redirect to the GitHub page
of repository <name> owned by the configured account. The repository list is
pulled from the GitHub API on first use and refreshed on a fixed interval.

Settings are read from the environment (and .env / .env.local if present):
GITHUB_USERNAME, GITHUB_TOKEN, GITHUB_API, GITHUB_API_URL, GITHUB_GRAPHQL_URL,
LISTEN_ADDR, ADMIN_ADDR, REFRESH_INTERVAL, RATE_LIMIT_SLEEP. Flags override them.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringP("user", "u", "", "GitHub account whose repositories are listed (default \"aworkaround\")")
	rootCmd.PersistentFlags().String("api", "", "Upstream listing API: rest or graphql (default \"rest\")")
	rootCmd.PersistentFlags().String("api-url", "", "GitHub REST API base URL")
}

// loadConfig resolves the configuration from the environment, then applies flags set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("user") {
		cfg.Account, _ = flags.GetString("user")
	}
	if flags.Changed("api") {
		cfg.API, _ = flags.GetString("api")
	}
	if flags.Changed("api-url") {
		cfg.APIURL, _ = flags.GetString("api-url")
	}
	if flags.Lookup("listen") != nil && flags.Changed("listen") {
		cfg.ListenAddr, _ = flags.GetString("listen")
	}
	if flags.Lookup("admin-listen") != nil && flags.Changed("admin-listen") {
		cfg.AdminAddr, _ = flags.GetString("admin-listen")
	}
	if flags.Lookup("refresh-interval") != nil && flags.Changed("refresh-interval") {
		cfg.RefreshInterval, _ = flags.GetDuration("refresh-interval")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger discards everything unless verbose is set or the command always logs.
func newLogger(cmd *cobra.Command, alwaysOn bool) *log.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := log.New(io.Discard, "", log.LstdFlags)
	if verbose || alwaysOn {
		logger.SetOutput(os.Stderr)
	}
	if verbose {
		logger.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}
	return logger
}

// newLister picks the REST or GraphQL gateway for cfg.
func newLister(cfg *config.Config, logger *log.Logger) (gateway.Lister, error) {
	httpClient, err := gateway.NewHTTPClient(cfg.Token, cfg.RateLimitSleep)
	if err != nil {
		return nil, err
	}
	if cfg.API == config.APIGraphQL {
		return gateway.NewGraphQLLister(httpClient, cfg.GraphQLURL, logger), nil
	}
	lister, err := gateway.NewRESTLister(httpClient, cfg.APIURL, config.UserAgent, logger)
	if err != nil {
		return nil, err
	}
	return lister, nil
}

// newIndexer injects the gateway into a fresh indexer writing to index.
func newIndexer(cfg *config.Config, index *cache.Index, recorder usecase.Recorder, logger *log.Logger) (*usecase.Indexer, error) {
	lister, err := newLister(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	return usecase.NewIndexer(lister, index, cfg.Account, recorder, logger), nil
}
