package collector_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/findna/internal/domain/collector"
	"github.com/okian/findna/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type stubFetcher struct {
	id      model.SourceID
	timeout time.Duration
	fetch   func(ctx context.Context) model.SourceResult
}

func (s *stubFetcher) Source() model.SourceID { return s.id }

func (s *stubFetcher) Timeout() time.Duration { return s.timeout }

func (s *stubFetcher) Fetch(ctx context.Context, _ string) model.SourceResult {
	return s.fetch(ctx)
}

func okFetcher(id model.SourceID, delay time.Duration) *stubFetcher {
	return &stubFetcher{id: id, fetch: func(ctx context.Context) model.SourceResult {
		select {
		case <-time.After(delay):
			return model.SourceResult{SourceID: id, Status: model.StatusOK}
		case <-ctx.Done():
			return model.SourceResult{SourceID: id, Status: model.StatusError, ErrorDetail: ctx.Err().Error()}
		}
	}}
}

func byID(results []model.SourceResult) map[model.SourceID]model.SourceResult {
	out := make(map[model.SourceID]model.SourceResult, len(results))
	for _, r := range results {
		out[r.SourceID] = r
	}
	return out
}

func TestCollect(t *testing.T) {
	Convey("Given six fetchers that all answer quickly", t, func() {
		var fetchers []collector.Fetcher
		for _, id := range model.AllSources() {
			fetchers = append(fetchers, okFetcher(id, 5*time.Millisecond))
		}
		c := collector.New(collector.WithDeadline(time.Second))

		results := c.Collect(context.Background(), "s1", fetchers)

		Convey("Then one ok result per fetcher is returned", func() {
			So(results, ShouldHaveLength, 6)
			for _, r := range results {
				So(r.Status, ShouldEqual, model.StatusOK)
				So(r.FetchedAt.IsZero(), ShouldBeFalse)
			}
			So(byID(results), ShouldHaveLength, 6)
		})
	})

	Convey("Given one fetcher that never resolves before the deadline", t, func() {
		release := make(chan struct{})
		defer close(release)

		stalled := &stubFetcher{id: model.SourceCreditReport, fetch: func(context.Context) model.SourceResult {
			<-release // ignores cancellation on purpose
			return model.SourceResult{Status: model.StatusOK}
		}}
		fetchers := []collector.Fetcher{
			okFetcher(model.SourceNetWorth, time.Millisecond),
			stalled,
			okFetcher(model.SourceBankTransactions, time.Millisecond),
		}
		deadline := 100 * time.Millisecond
		c := collector.New(collector.WithDeadline(deadline))

		start := time.Now()
		results := c.Collect(context.Background(), "s1", fetchers)
		elapsed := time.Since(start)

		Convey("Then all results come back within the deadline plus a margin", func() {
			So(results, ShouldHaveLength, 3)
			So(elapsed, ShouldBeLessThan, deadline+250*time.Millisecond)
			So(elapsed, ShouldBeGreaterThanOrEqualTo, deadline)
		})

		Convey("Then the stalled one is marked missing", func() {
			got := byID(results)
			So(got[model.SourceCreditReport].Status, ShouldEqual, model.StatusMissing)
			So(got[model.SourceCreditReport].ErrorDetail, ShouldContainSubstring, "no response within")
			So(got[model.SourceNetWorth].Status, ShouldEqual, model.StatusOK)
			So(got[model.SourceBankTransactions].Status, ShouldEqual, model.StatusOK)
		})
	})

	Convey("Given a fetcher that fails and one that panics", t, func() {
		var siblingCancelled atomic.Bool
		failing := &stubFetcher{id: model.SourceNetWorth, fetch: func(context.Context) model.SourceResult {
			return model.SourceResult{Status: model.StatusError, ErrorDetail: "upstream down"}
		}}
		panicking := &stubFetcher{id: model.SourceStockTransactions, fetch: func(context.Context) model.SourceResult {
			panic("boom")
		}}
		slow := &stubFetcher{id: model.SourceFundTransactions, fetch: func(ctx context.Context) model.SourceResult {
			select {
			case <-time.After(30 * time.Millisecond):
				return model.SourceResult{Status: model.StatusOK}
			case <-ctx.Done():
				siblingCancelled.Store(true)
				return model.SourceResult{Status: model.StatusError}
			}
		}}
		c := collector.New(collector.WithDeadline(time.Second))

		got := byID(c.Collect(context.Background(), "s1", []collector.Fetcher{failing, panicking, slow}))

		Convey("Then failures are captured as data and siblings keep running", func() {
			So(got[model.SourceNetWorth].Status, ShouldEqual, model.StatusError)
			So(got[model.SourceNetWorth].ErrorDetail, ShouldEqual, "upstream down")
			So(got[model.SourceStockTransactions].Status, ShouldEqual, model.StatusError)
			So(got[model.SourceStockTransactions].ErrorDetail, ShouldContainSubstring, "panicked")
			So(got[model.SourceFundTransactions].Status, ShouldEqual, model.StatusOK)
			So(siblingCancelled.Load(), ShouldBeFalse)
		})
	})

	Convey("Given a fetcher that reports the wrong source id and no status", t, func() {
		sloppy := &stubFetcher{id: model.SourceRetirementFund, fetch: func(context.Context) model.SourceResult {
			return model.SourceResult{SourceID: model.SourceNetWorth}
		}}
		results := collector.New(collector.WithDeadline(time.Second)).Collect(context.Background(), "s1", []collector.Fetcher{sloppy})

		Convey("Then the result is pinned to the fetcher and treated as an error", func() {
			So(results[0].SourceID, ShouldEqual, model.SourceRetirementFund)
			So(results[0].Status, ShouldEqual, model.StatusError)
		})
	})

	Convey("Given a caller that goes away while a fetcher is pending", t, func() {
		release := make(chan struct{})
		defer close(release)

		stalled := &stubFetcher{id: model.SourceRetirementFund, fetch: func(context.Context) model.SourceResult {
			<-release
			return model.SourceResult{Status: model.StatusOK}
		}}
		fetchers := []collector.Fetcher{okFetcher(model.SourceNetWorth, time.Millisecond), stalled}
		c := collector.New(collector.WithDeadline(time.Minute))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		start := time.Now()
		results := c.Collect(ctx, "s1", fetchers)

		Convey("Then the pending fetcher reports the cancellation, not a timeout", func() {
			So(time.Since(start), ShouldBeLessThan, time.Second)
			got := byID(results)
			So(got[model.SourceRetirementFund].Status, ShouldEqual, model.StatusMissing)
			So(got[model.SourceRetirementFund].ErrorDetail, ShouldContainSubstring, "cancelled by caller")
			So(got[model.SourceRetirementFund].ErrorDetail, ShouldNotContainSubstring, "no response within")
		})
	})

	Convey("Given no explicit deadline", t, func() {
		release := make(chan struct{})
		defer close(release)
		stalled := &stubFetcher{id: model.SourceNetWorth, timeout: 80 * time.Millisecond, fetch: func(context.Context) model.SourceResult {
			<-release
			return model.SourceResult{}
		}}
		quick := &stubFetcher{id: model.SourceCreditReport, timeout: 20 * time.Millisecond, fetch: func(context.Context) model.SourceResult {
			return model.SourceResult{Status: model.StatusOK}
		}}

		start := time.Now()
		results := collector.New().Collect(context.Background(), "s1", []collector.Fetcher{stalled, quick})

		Convey("Then the longest fetcher timeout is used, not the sum", func() {
			So(time.Since(start), ShouldBeBetween, 80*time.Millisecond, 300*time.Millisecond)
			So(byID(results)[model.SourceNetWorth].Status, ShouldEqual, model.StatusMissing)
		})
	})

	Convey("Given a concurrency limit of one", t, func() {
		var running, peak atomic.Int32
		mk := func(id model.SourceID) *stubFetcher {
			return &stubFetcher{id: id, fetch: func(context.Context) model.SourceResult {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return model.SourceResult{Status: model.StatusOK}
			}}
		}
		c := collector.New(collector.WithDeadline(time.Second), collector.WithMaxConcurrent(1))
		results := c.Collect(context.Background(), "s1", []collector.Fetcher{
			mk(model.SourceNetWorth), mk(model.SourceCreditReport), mk(model.SourceBankTransactions),
		})

		Convey("Then fetchers run one at a time", func() {
			So(results, ShouldHaveLength, 3)
			So(peak.Load(), ShouldEqual, 1)
		})
	})

	Convey("Given no fetchers", t, func() {
		results := collector.New().Collect(context.Background(), "s1", nil)
		So(results, ShouldBeEmpty)
	})
}
