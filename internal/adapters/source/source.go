package source

import (
	"github.com/okian/findna/internal/domain/collector"
	"github.com/okian/findna/internal/domain/model"
)

// NewFetchers builds one fetcher per known source from p. When cache is
// not nil every capability is wrapped by it.
func NewFetchers(p Provider, cache *Cache, opts ...Option) ([]collector.Fetcher, error) {
	ids := model.AllSources()
	fetchers := make([]collector.Fetcher, 0, len(ids))
	for _, id := range ids {
		c, err := p.Capability(id)
		if err != nil {
			return nil, err
		}
		f, err := NewFetcher(id, cache.Wrap(id, c), opts...)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, f)
	}
	return fetchers, nil
}

var _ collector.Fetcher = (*Fetcher)(nil)
var _ collector.TimeoutReporter = (*Fetcher)(nil)
