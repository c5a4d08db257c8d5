package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-redirector/internal/cache"
	"github.com/naka-gawa/repo-redirector/internal/handler"
	"github.com/naka-gawa/repo-redirector/internal/metrics"
	"github.com/naka-gawa/repo-redirector/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves repository redirects over HTTP",
	Long: `Serves /<name> redirects to repository pages. The index is built on the first
request and refreshed every --refresh-interval in the background. When
--admin-listen is set, /metrics and /status are served on that address.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Upstream failures must reach the operator, so serve always logs.
		logger := newLogger(cmd, true)

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Inject dependencies.
		recorder := metrics.NewRecorder()
		index := cache.New()
		indexer, err := newIndexer(cfg, index, recorder, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

		servers := []*http.Server{{
			Addr:              cfg.ListenAddr,
			Handler:           handler.NewRedirect(index, indexer, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}}
		if cfg.AdminAddr != "" {
			servers = append(servers, &http.Server{
				Addr:              cfg.AdminAddr,
				Handler:           handler.NewAdmin(index, recorder, cfg.Account),
				ReadHeaderTimeout: 10 * time.Second,
			})
		}

		eg, egCtx := errgroup.WithContext(ctx)

		if cfg.RefreshInterval > 0 {
			sched, err := scheduler.New(indexer, logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			if _, err := sched.ScheduleRefresh(cfg.RefreshInterval); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			sched.Start()
			eg.Go(func() error {
				<-egCtx.Done()
				return sched.Stop()
			})
		}

		for _, srv := range servers {
			eg.Go(func() error {
				logger.Printf("Listening on %s\n", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
				}
				return nil
			})
		}

		eg.Go(func() error {
			<-egCtx.Done()
			return shutdown(servers, logger)
		})

		if err := eg.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "Server stopped with error: %v\n", err)
			os.Exit(1)
		}
	},
}

func shutdown(servers []*http.Server, logger *log.Logger) error {
	logger.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}
	return errors.Join(errs...)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "Address of the redirect listener")
	serveCmd.Flags().String("admin-listen", "", "Address of the admin listener serving /metrics and /status (disabled when empty)")
	serveCmd.Flags().Duration("refresh-interval", time.Hour, "Interval between background index refreshes (0 disables)")
}
