package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/findna/internal/adapters/repository"
	"github.com/okian/findna/internal/config"
	"github.com/okian/findna/internal/di"
	"github.com/okian/findna/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVerifyTop(t *testing.T) {
	Convey("Given ranked entries", t, func() {
		entries := []repository.Entry{
			{Rank: 1, SessionID: "a", DisciplineScore: 80},
			{Rank: 2, SessionID: "b", DisciplineScore: 80},
			{Rank: 3, SessionID: "c", DisciplineScore: 41.5},
		}

		Convey("When they are ordered best first", func() {
			Convey("Then they verify", func() {
				So(verifyTop(entries), ShouldBeNil)
				So(verifyTop(nil), ShouldBeNil)
			})
		})

		Convey("When a lower score precedes a higher one", func() {
			entries[2].DisciplineScore = 95

			Convey("Then the order is rejected", func() {
				So(errors.Is(verifyTop(entries), ErrNotSorted), ShouldBeTrue)
			})
		})

		Convey("When ranks go backwards", func() {
			entries[1].Rank = 0

			Convey("Then the order is rejected", func() {
				So(errors.Is(verifyTop(entries), ErrNotSorted), ShouldBeTrue)
			})
		})
	})
}

func TestRun_AgainstServer(t *testing.T) {
	Convey("Given a server assembled over the sample fixtures", t, func() {
		t.Setenv("FINDNA_FIXTURES_DIR", "../../testdata/fixtures")
		t.Setenv("FINDNA_RETRY_INITIAL_BACKOFF", "1ms")
		t.Setenv("FINDNA_RETRY_MAX_BACKOFF", "2ms")

		ctx := context.Background()
		cfg, err := config.Load(ctx)
		So(err, ShouldBeNil)

		svc, err := di.NewService(ctx, cfg, logger.Nop())
		So(err, ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		srv, err := di.NewAPIServer(svc, cfg, logger.Nop())
		So(err, ShouldBeNil)
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		out := filepath.Join(t.TempDir(), "stats", "run.json")

		Convey("When a load run builds profiles concurrently", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:    ts.URL,
				Sessions:   12,
				Workers:    4,
				Timeout:    10 * time.Second,
				TopN:       5,
				OutputFile: out,
				Prefix:     "t",
			}, logger.Nop())

			Convey("Then every profile is created and read back", func() {
				So(err, ShouldBeNil)
				So(stats.Submitted, ShouldEqual, 12)
				So(stats.Created, ShouldEqual, 12)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Retrieved, ShouldEqual, 12)
				So(stats.TopEntries, ShouldEqual, 5)
			})

			Convey("Then the statistics are saved", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var saved Stats
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(saved.Created, ShouldEqual, 12)
			})
		})
	})
}

func TestRun_ResponseClassification(t *testing.T) {
	Convey("Given a server answering builds with mixed statuses", t, func() {
		var n atomic.Int64
		mux := http.NewServeMux()
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"overall_status":"healthy"}`))
		})
		mux.HandleFunc("POST /v1/profiles", func(w http.ResponseWriter, _ *http.Request) {
			switch n.Add(1) % 3 {
			case 0:
				w.WriteHeader(http.StatusConflict)
			case 1:
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte(`{"persisted":false,"pending_actions":[{"source_id":"net_worth"}]}`))
			default:
				w.WriteHeader(http.StatusInternalServerError)
			}
		})
		mux.HandleFunc("GET /v1/profiles/top", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotImplemented)
		})
		mux.HandleFunc("GET /v1/profiles/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		ts := httptest.NewServer(mux)
		defer ts.Close()

		Convey("When a run is executed", func() {
			stats, err := Run(context.Background(), &Config{
				BaseURL:  ts.URL + "/",
				Sessions: 6,
				Workers:  2,
				Timeout:  time.Second,
				TopN:     3,
			}, logger.Nop())

			Convey("Then each outcome is counted and ranking is skipped", func() {
				So(err, ShouldBeNil)
				So(stats.Submitted, ShouldEqual, 6)
				So(stats.Created, ShouldEqual, 0)
				So(stats.NotPersisted, ShouldEqual, 2)
				So(stats.Conflicts, ShouldEqual, 2)
				So(stats.Failed, ShouldEqual, 2)
				So(stats.PendingActions, ShouldEqual, 2)
				So(stats.TopEntries, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a critical server", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/healthz") {
				_, _ = w.Write([]byte(`{"overall_status":"critical"}`))
			}
		}))
		defer ts.Close()

		Convey("Then the run refuses to start", func() {
			_, err := Run(context.Background(), &Config{BaseURL: ts.URL, Sessions: 1, Workers: 1, Timeout: time.Second, TopN: 1}, logger.Nop())
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})
}
