package di_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/findna/internal/adapters/narrative"
	"github.com/okian/findna/internal/adapters/repository"
	"github.com/okian/findna/internal/adapters/source"
	service "github.com/okian/findna/internal/app"
	"github.com/okian/findna/internal/config"
	"github.com/okian/findna/internal/di"
	"github.com/okian/findna/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.FixturesDir = "../../testdata/fixtures"
	cfg.HealthCheckSchedule = ""
	cfg.RetryInitialBackoff = time.Millisecond
	cfg.RetryMaxBackoff = 2 * time.Millisecond
	return cfg
}

func TestComponents(t *testing.T) {
	ctx := context.Background()

	Convey("Given the default configuration", t, func() {
		cfg := testConfig()

		Convey("Then the retry policy follows it", func() {
			p := di.RetryPolicy(cfg)
			So(p.MaxAttempts, ShouldEqual, 3)
			So(p.InitialInterval, ShouldEqual, time.Millisecond)
			So(p.MaxInterval, ShouldEqual, 2*time.Millisecond)
		})

		Convey("Then the memory store is opened", func() {
			s, err := di.NewStore(ctx, cfg)
			So(err, ShouldBeNil)
			_, ok := s.(*repository.MemoryStore)
			So(ok, ShouldBeTrue)
		})

		Convey("Then payloads come from the fixture directory", func() {
			p, err := di.NewProvider(cfg)
			So(err, ShouldBeNil)
			_, ok := p.(*source.Fixtures)
			So(ok, ShouldBeTrue)

			fetchers, err := di.NewFetchers(cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(fetchers, ShouldHaveLength, 6)
		})

		Convey("Then the template narrative is used", func() {
			g, err := di.NewNarrative(ctx, cfg, logger.Nop())
			So(err, ShouldBeNil)
			_, ok := g.(*narrative.TemplateGenerator)
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Given a source URL", t, func() {
		cfg := testConfig()
		cfg.SourceURL = "http://localhost:8080/mcp/stream"

		Convey("Then the MCP client is used", func() {
			p, err := di.NewProvider(cfg)
			So(err, ShouldBeNil)
			_, ok := p.(*source.MCPClient)
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Given an unknown store", t, func() {
		cfg := testConfig()
		cfg.Store = "cassandra"

		Convey("Then opening it fails", func() {
			_, err := di.NewStore(ctx, cfg)
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestNewService(t *testing.T) {
	Convey("Given a service assembled from the default configuration", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		svc, err := di.NewService(ctx, cfg, logger.Nop())
		So(err, ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When a profile is built from the fixtures", func() {
			res, err := svc.Build(ctx, service.BuildRequest{UserID: "u1", SessionID: "wired"})

			Convey("Then it is complete and stored", func() {
				So(err, ShouldBeNil)
				So(res.Profile.DataQualityScore, ShouldEqual, 100)
				So(res.Persisted, ShouldBeTrue)
			})
		})

		Convey("Then an API server can be created", func() {
			srv, err := di.NewAPIServer(svc, cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(srv.Handler(), ShouldNotBeNil)
		})
	})
}

type closingStore struct {
	*repository.MemoryStore
	closed bool
}

func (s *closingStore) Close() error {
	s.closed = true
	return nil
}

func TestNewServiceWithStore(t *testing.T) {
	Convey("Given an opened store", t, func() {
		ctx := context.Background()
		store := &closingStore{MemoryStore: repository.NewMemoryStore()}

		Convey("When the sources cannot be assembled", func() {
			cfg := testConfig()
			cfg.SourceURL = " "
			_, err := di.NewServiceWithStore(ctx, cfg, logger.Nop(), store)

			Convey("Then the store is closed", func() {
				So(errors.Is(err, source.ErrEmptyEndpoint), ShouldBeTrue)
				So(store.closed, ShouldBeTrue)
			})
		})

		Convey("When assembly succeeds", func() {
			svc, err := di.NewServiceWithStore(ctx, testConfig(), logger.Nop(), store)

			Convey("Then the store stays open until the service stops", func() {
				So(err, ShouldBeNil)
				So(store.closed, ShouldBeFalse)
				So(svc.Start(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
				So(store.closed, ShouldBeTrue)
			})
		})
	})
}
