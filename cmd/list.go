package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-redirector/internal/cache"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Builds the repository index once and outputs it as JSON",
	Long:  `Fetches the repository listing for the configured account, builds the case-insensitive name to URL index the server would use, and prints it in JSON format.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := newLogger(cmd, false)

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		index := cache.New()
		indexer, err := newIndexer(cfg, index, nil, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if err := indexer.Build(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build repository index: %v\n", err)
			os.Exit(1)
		}

		// Map keys are marshalled in sorted order.
		jsonData, err := json.MarshalIndent(index.Snapshot(), "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal index to JSON: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(jsonData))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
