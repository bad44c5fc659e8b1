package source_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/findna/internal/adapters/source"
	"github.com/okian/findna/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func counting(resp source.Response, err error) (source.Capability, *atomic.Int32) {
	var calls atomic.Int32
	return source.CapabilityFunc(func(context.Context, string) (source.Response, error) {
		calls.Add(1)
		return resp, err
	}), &calls
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a cache with a five minute ttl", t, func() {
		clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		cache := source.NewCache(5*time.Minute, clock.now)

		Convey("When the same session is fetched twice", func() {
			next, calls := counting(source.Response{Payload: []byte(`{"a":1}`)}, nil)
			c := cache.Wrap(model.SourceNetWorth, next)
			_, _ = c.Fetch(ctx, "s1")
			resp, err := c.Fetch(ctx, "s1")

			Convey("Then upstream is called once", func() {
				So(err, ShouldBeNil)
				So(string(resp.Payload), ShouldEqual, `{"a":1}`)
				So(calls.Load(), ShouldEqual, 1)
				So(cache.Len(), ShouldEqual, 1)
			})

			Convey("Then another session misses", func() {
				_, _ = c.Fetch(ctx, "s2")
				So(calls.Load(), ShouldEqual, 2)
			})

			Convey("Then the entry expires after the ttl", func() {
				clock.advance(5 * time.Minute)
				So(cache.Len(), ShouldEqual, 0)
				_, _ = c.Fetch(ctx, "s1")
				So(calls.Load(), ShouldEqual, 2)
			})

			Convey("Then invalidating the session forces a refetch", func() {
				cache.Invalidate("s1")
				_, _ = c.Fetch(ctx, "s1")
				So(calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When upstream fails or asks for a login", func() {
			failing, failCalls := counting(source.Response{}, errors.New("down"))
			login, loginCalls := counting(source.Response{AuthLink: "https://example.test/login"}, nil)
			cf := cache.Wrap(model.SourceCreditReport, failing)
			cl := cache.Wrap(model.SourceBankTransactions, login)
			for range 2 {
				_, _ = cf.Fetch(ctx, "s1")
				_, _ = cl.Fetch(ctx, "s1")
			}

			Convey("Then nothing is cached", func() {
				So(failCalls.Load(), ShouldEqual, 2)
				So(loginCalls.Load(), ShouldEqual, 2)
				So(cache.Len(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a cache in front of a fetcher", t, func() {
		cache := source.NewCache(5*time.Minute, nil)
		c := &scripted{answers: []func(context.Context) (source.Response, error){
			answer(`{"creditReport":{"creditScore":"not-a-number"}}`),
			answer(`{"creditReport":{"creditScore":764}}`),
		}}
		f, err := source.NewFetcher(model.SourceCreditReport, cache.Wrap(model.SourceCreditReport, c),
			source.WithRetryPolicy(fastPolicy()))
		So(err, ShouldBeNil)

		Convey("When upstream first returns a document that does not decode", func() {
			first := f.Fetch(ctx, "s1")
			second := f.Fetch(ctx, "s1")

			Convey("Then the bad document is not served again", func() {
				So(first.Status, ShouldEqual, model.StatusIncomplete)
				So(second.Status, ShouldEqual, model.StatusOK)
				So(c.calls.Load(), ShouldEqual, 2)
				So(cache.Len(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a disabled cache", t, func() {
		next, calls := counting(source.Response{Payload: []byte(`{}`)}, nil)
		c := source.NewCache(0, nil).Wrap(model.SourceNetWorth, next)
		_, _ = c.Fetch(ctx, "s1")
		_, _ = c.Fetch(ctx, "s1")
		So(calls.Load(), ShouldEqual, 2)
	})

	Convey("Given a nil cache", t, func() {
		var cache *source.Cache
		next, calls := counting(source.Response{Payload: []byte(`{}`)}, nil)
		c := cache.Wrap(model.SourceNetWorth, next)
		_, _ = c.Fetch(ctx, "s1")
		_, _ = c.Fetch(ctx, "s1")

		Convey("Then every fetch reaches upstream", func() {
			So(calls.Load(), ShouldEqual, 2)
		})
	})
}
