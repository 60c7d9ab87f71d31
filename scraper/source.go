// Package scraper defines the upstream listing sources and fans out over
// them. Concrete sources live in the feed, browser and fixture packages.
package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"realestate-leads/models"
	"realestate-leads/utils"
)

// Source is an upstream listing feed. Implementations must honour ctx
// cancellation and return whatever they could parse even if some pages fail.
type Source interface {
	Name() string
	FetchCandidateListings(ctx context.Context, filter models.SearchFilter) ([]*models.RawListing, error)
}

// Result is the outcome of one source within FetchAll.
type Result struct {
	Source   string
	Listings []*models.RawListing
	Err      error
	Took     time.Duration
}

// FetchAll runs every source on pool and waits for all of them. A failing
// source is reported in its Result and does not affect the others. Results
// are returned in the order of sources.
func FetchAll(ctx context.Context, pool *utils.WorkerPool, logger *utils.Logger, filter models.SearchFilter, sources ...Source) []Result {
	results := make([]Result, len(sources))
	var mu sync.Mutex

	for i, src := range sources {
		i, src := i, src
		pool.Submit(func() {
			start := time.Now()
			res := Result{Source: src.Name()}

			func() {
				defer func() {
					if r := recover(); r != nil {
						res.Err = fmt.Errorf("%s: panic: %v", src.Name(), r)
					}
				}()
				if err := ctx.Err(); err != nil {
					res.Err = err
					return
				}
				res.Listings, res.Err = src.FetchCandidateListings(ctx, filter)
			}()
			res.Took = time.Since(start)

			if res.Err != nil {
				logger.Error("Source %s failed after %v: %v", res.Source, res.Took, res.Err)
			} else {
				logger.Info("Source %s returned %d raw listings in %v", res.Source, len(res.Listings), res.Took)
			}

			mu.Lock()
			results[i] = res
			mu.Unlock()
		})
	}
	pool.Wait()
	return results
}

// Flatten concatenates the listings of every result, failed ones included.
func Flatten(results []Result) []*models.RawListing {
	var out []*models.RawListing
	for _, r := range results {
		out = append(out, r.Listings...)
	}
	return out
}
