package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/okian/findna/internal/adapters/repository"
)

// Verification errors.
var (
	ErrUnhealthy     = errors.New("service is not healthy")
	ErrNotSorted     = errors.New("top entries are not sorted")
	ErrMissingSource = errors.New("built profile cannot be read back")
)

// retrieveProfiles reads every session back and counts the ones found.
func retrieveProfiles(ctx context.Context, c *client, workers int, reqs []buildRequest) int {
	var found atomic.Int64
	ch := make(chan string, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ch {
				status, err := c.getJSON(ctx, "/v1/profiles/"+id, nil)
				if err == nil && status == http.StatusOK {
					found.Add(1)
				}
			}
		}()
	}
	for _, r := range reqs {
		ch <- r.SessionID
	}
	close(ch)
	wg.Wait()
	return int(found.Load())
}

// verifyTop checks that entries are ordered by discipline score, best first,
// with non-decreasing ranks.
func verifyTop(entries []repository.Entry) error {
	for i := 1; i < len(entries); i++ {
		if entries[i].DisciplineScore > entries[i-1].DisciplineScore {
			return fmt.Errorf("%w: entry %d scores %.2f above entry %d (%.2f)",
				ErrNotSorted, i, entries[i].DisciplineScore, i-1, entries[i-1].DisciplineScore)
		}
		if entries[i].Rank < entries[i-1].Rank {
			return fmt.Errorf("%w: rank %d follows rank %d", ErrNotSorted, entries[i].Rank, entries[i-1].Rank)
		}
	}
	return nil
}
