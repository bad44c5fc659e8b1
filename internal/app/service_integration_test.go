package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/findna/internal/adapters/narrative"
	"github.com/okian/findna/internal/adapters/repository"
	"github.com/okian/findna/internal/adapters/source"
	service "github.com/okian/findna/internal/app"
	"github.com/okian/findna/internal/domain/collector"
	"github.com/okian/findna/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const fixturesDir = "../../testdata/fixtures"

func fixtureService(store repository.Store) *service.Service {
	fetchers, err := source.NewFetchers(source.NewFixtures(fixturesDir), source.NewCache(time.Minute, nil))
	So(err, ShouldBeNil)

	svc := service.New(
		service.WithFetchers(fetchers),
		service.WithCollector(collector.New(collector.WithDeadline(5*time.Second))),
		service.WithStore(store, "memory"),
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
	)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestServiceIntegration(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service reading the sample fixtures", t, func() {
		store := repository.NewMemoryStore()
		svc := fixtureService(store)
		defer svc.Stop(ctx)

		Convey("When a full profile is built", func() {
			res, err := svc.Build(ctx, service.BuildRequest{UserID: "u1", SessionID: "full"})
			So(err, ShouldBeNil)
			p := res.Profile

			Convey("Then every source contributes", func() {
				So(p.DataQualityScore, ShouldEqual, 100)
				So(p.DataSourcesUsed, ShouldHaveLength, 6)
				So(res.PendingActions, ShouldBeEmpty)
				So(res.Health.OverallStatus, ShouldEqual, model.HealthHealthy)
			})

			Convey("Then the figures are derived from the documents", func() {
				So(p.TotalAssets, ShouldEqual, 1810000)
				So(p.TotalLiabilities, ShouldEqual, 204000)
				So(p.TotalNetWorth, ShouldEqual, 1606000)
				So(*p.CreditScore, ShouldEqual, 764)
				So(p.RetirementBalance, ShouldEqual, 310000)
				So(p.InvestmentDiversification, ShouldContainKey, "Equity")
				So(p.SavingsRate, ShouldBeGreaterThan, 0)
			})

			Convey("Then the profile is scored and projected", func() {
				So(p.RiskProfile, ShouldNotBeEmpty)
				So(p.DisciplineScore, ShouldBeBetweenOrEqual, 0, 100)
				So(p.Projections, ShouldContainKey, 30)
				So(p.Recommendations, ShouldNotBeEmpty)
			})

			Convey("Then the profile and context round trip through the store", func() {
				So(res.Persisted, ShouldBeTrue)
				stored, err := store.Get(ctx, "full")
				So(err, ShouldBeNil)
				So(stored.TotalNetWorth, ShouldEqual, p.TotalNetWorth)

				nc, err := store.GetContext(ctx, "full")
				So(err, ShouldBeNil)
				So(nc, ShouldContainKey, narrative.KeyTimeline)
				So(nc, ShouldContainKey, narrative.KeyPrompts)
			})
		})

		Convey("When the net worth source asks for a login", func() {
			res, err := svc.Build(ctx, service.BuildRequest{UserID: "u2", SessionID: "needs-login"})
			So(err, ShouldBeNil)

			Convey("Then the build is partial and the link surfaces", func() {
				So(res.Profile.DataQualityScore, ShouldBeLessThan, 100)
				So(res.PendingActions, ShouldHaveLength, 1)
				So(res.PendingActions[0].SourceID, ShouldEqual, model.SourceNetWorth)
				So(res.PendingActions[0].Link, ShouldContainSubstring, "fi.example.test/login")
			})
		})

		Convey("When many sessions build concurrently", func() {
			const sessions = 20
			var wg sync.WaitGroup
			errs := make([]error, sessions)
			for i := range sessions {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.Build(ctx, service.BuildRequest{
						UserID:    fmt.Sprintf("user-%d", i),
						SessionID: fmt.Sprintf("session-%d", i),
					})
				}(i)
			}
			wg.Wait()

			Convey("Then every build succeeds and is ranked", func() {
				for _, err := range errs {
					So(err, ShouldBeNil)
				}
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, sessions)

				top, err := svc.Top(ctx, 5)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 5)
			})
		})
	})
}
