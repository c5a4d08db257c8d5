// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/naka-gawa/repo-redirector/internal/cache"
	"github.com/naka-gawa/repo-redirector/internal/domain"
	"github.com/naka-gawa/repo-redirector/internal/gateway"
)

// Recorder receives the outcome of every build.
type Recorder interface {
	ObserveBuild(d time.Duration, repos int, err error)
}

// Indexer is the use case for building the repository index.
// It fetches the listing from the gateway and installs the projection in the cache.
type Indexer struct {
	lister   gateway.Lister
	index    *cache.Index
	account  string
	recorder Recorder
	logger   *log.Logger

	group singleflight.Group
}

// NewIndexer creates a new Indexer instance. recorder may be nil.
func NewIndexer(lister gateway.Lister, index *cache.Index, account string, recorder Recorder, logger *log.Logger) *Indexer {
	return &Indexer{
		lister:   lister,
		index:    index,
		account:  account,
		recorder: recorder,
		logger:   logger,
	}
}

// Build fetches the listing and replaces the whole index with it.
// On failure the previous index and its populated flag are left as they were,
// and the returned error wraps domain.ErrUpstream.
// Concurrent callers share one upstream call and its result.
func (i *Indexer) Build(ctx context.Context) error {
	_, err, shared := i.group.Do(i.account, func() (interface{}, error) {
		return nil, i.build(ctx)
	})
	if shared {
		i.logger.Println("Usecase: index build was shared with concurrent callers.")
	}
	return err
}

func (i *Indexer) build(ctx context.Context) error {
	i.logger.Printf("Usecase: building repository index for %s...\n", i.account)
	start := time.Now()

	repos, err := i.lister.ListRepositories(ctx, i.account)
	if err != nil {
		i.observe(time.Since(start), 0, err)
		return err
	}

	idx := domain.NewIndex(repos)
	i.index.Replace(idx)
	i.observe(time.Since(start), len(idx), nil)

	i.logger.Printf("Usecase: index built with %d repositories.\n", len(idx))
	return nil
}

func (i *Indexer) observe(d time.Duration, repos int, err error) {
	if i.recorder != nil {
		i.recorder.ObserveBuild(d, repos, err)
	}
}
