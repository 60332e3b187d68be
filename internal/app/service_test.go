package service_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/openoutings/outings/internal/adapters/cache"
	"github.com/openoutings/outings/internal/adapters/repository"
	service "github.com/openoutings/outings/internal/app"
	"github.com/openoutings/outings/internal/domain/buddy"
	"github.com/openoutings/outings/internal/domain/similarity"
	"github.com/openoutings/outings/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func clock() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func profile(id string, birthYear int, interests ...string) repository.ProfileRow {
	return repository.ProfileRow{ID: id, BirthYear: intPtr(birthYear), Interests: interests}
}

func eventAt(id string, lat, lng float64, starts time.Time, interests ...string) repository.EventRow {
	return repository.EventRow{ID: id, Interests: interests, Lat: floatPtr(lat), Lng: floatPtr(lng), StartsAt: starts}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc, err := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(err, ShouldBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["maxRecommendations"], ShouldEqual, 20)
			So(stats["profiles"], ShouldEqual, 0)
		})
	})

	Convey("Given a negative buddy weight", t, func() {
		_, err := service.New(service.WithBuddyWeights(buddy.Weights{Interests: -1}))

		Convey("Then construction fails", func() {
			So(errors.Is(err, buddy.ErrInvalidWeight), ShouldBeTrue)
		})
	})

	Convey("Given a negative event weight", t, func() {
		_, err := service.New(service.WithEventWeights(similarity.Weights{Time: -1}))

		Convey("Then construction fails", func() {
			So(errors.Is(err, similarity.ErrInvalidWeight), ShouldBeTrue)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc, err := service.New(service.WithWorkerCount(2), service.WithQueueSize(10))
		So(err, ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
				So(stats["queueCapacity"], ShouldEqual, 10)
			})

			Convey("Then stopping marks it stopped", func() {
				So(svc.Stop(context.Background()), ShouldBeNil)
				So(svc.Stop(context.Background()), ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("Then a stopped service refuses to restart", func() {
				So(svc.Stop(context.Background()), ShouldBeNil)
				So(errors.Is(svc.Start(ctx), service.ErrStopped), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When refreshing before start", func() {
			ctx := context.Background()
			So(svc.UpsertEvent(ctx, eventAt("e1", 55.75, 37.62, clock(), "yoga")), ShouldBeNil)
			err := svc.RefreshEvent(ctx, "e1")

			Convey("Then the pipeline reports it is not running", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_BuddyMatches(t *testing.T) {
	Convey("Given an event with three attendees", t, func() {
		ctx := context.Background()
		svc, err := service.New(service.WithClock(clock))
		So(err, ShouldBeNil)

		So(svc.UpsertEvent(ctx, eventAt("e1", 55.75, 37.62, clock(), "yoga")), ShouldBeNil)
		So(svc.UpsertProfile(ctx, profile("r", 1997, "Йога", "Кафе")), ShouldBeNil)
		So(svc.UpsertProfile(ctx, profile("c", 1995, "Кафе", "Фитнес")), ShouldBeNil)

		picky := profile("p", 1990, "Йога", "Кафе")
		picky.Buddy = &repository.BuddyPrefsRow{Enabled: true, AgeMin: intPtr(30)}
		So(svc.UpsertProfile(ctx, picky), ShouldBeNil)

		for _, id := range []string{"r", "c", "p"} {
			So(svc.JoinEvent(ctx, "e1", id), ShouldBeNil)
		}

		Convey("When the requester asks for buddies", func() {
			matches, err := svc.BuddyMatches(ctx, "e1", "r")

			Convey("Then candidates that exclude the requester's age are dropped", func() {
				So(err, ShouldBeNil)
				So(len(matches), ShouldEqual, 1)
				So(matches[0].User.ID, ShouldEqual, "c")
				So(matches[0].CompatibilityScore, ShouldAlmostEqual, 57.67, 0.01)
				So(matches[0].Reasons, ShouldContain, "Кафе")
			})
		})

		Convey("When a user who left asks for buddies", func() {
			So(svc.LeaveEvent(ctx, "e1", "r"), ShouldBeNil)
			_, err := svc.BuddyMatches(ctx, "e1", "r")

			Convey("Then the request is refused", func() {
				So(errors.Is(err, repository.ErrNotAttendee), ShouldBeTrue)
			})
		})

		Convey("When the event does not exist", func() {
			_, err := svc.BuddyMatches(ctx, "nope", "r")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_RefreshDropsCachedList(t *testing.T) {
	Convey("Given a cached similar list", t, func() {
		ctx := context.Background()
		c := cache.NewMemoryCache()
		svc, err := service.New(service.WithCache(c))
		So(err, ShouldBeNil)
		So(svc.UpsertEvent(ctx, eventAt("a", 55.75, 37.61, clock(), "yoga")), ShouldBeNil)
		So(svc.UpsertEvent(ctx, eventAt("b", 55.76, 37.62, clock(), "yoga")), ShouldBeNil)
		_, err = svc.SimilarEvents(ctx, "a", 1)
		So(err, ShouldBeNil)
		_, err = c.Get(ctx, "similar:a")
		So(err, ShouldBeNil)

		Convey("When a refresh is requested", func() {
			err := svc.RefreshEvent(ctx, "a")

			Convey("Then the list is dropped even though nothing can recompute it yet", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				_, getErr := c.Get(ctx, "similar:a")
				So(errors.Is(getErr, cache.ErrCacheMiss), ShouldBeTrue)
			})
		})
	})
}

func TestService_SimilarEvents(t *testing.T) {
	Convey("Given events around Moscow", t, func() {
		ctx := context.Background()
		svc, err := service.New(service.WithMaxRecommendations(2))
		So(err, ShouldBeNil)

		start := clock()
		So(svc.UpsertEvent(ctx, eventAt("ref", 55.7558, 37.6173, start, "yoga", "cafe")), ShouldBeNil)
		So(svc.UpsertEvent(ctx, eventAt("near", 55.7600, 37.6200, start.Add(24*time.Hour), "yoga")), ShouldBeNil)
		So(svc.UpsertEvent(ctx, eventAt("mid", 55.8000, 37.7000, start, "yoga")), ShouldBeNil)
		So(svc.UpsertEvent(ctx, eventAt("far", 59.9343, 30.3351, start.Add(60*24*time.Hour), "run")), ShouldBeNil)

		Convey("When similar events are requested without a limit", func() {
			list, err := svc.SimilarEvents(ctx, "ref", 0)

			Convey("Then the configured maximum applies and order is best first", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 2)
				So(list[0].Event.ID, ShouldEqual, "near")
				So(list[1].Event.ID, ShouldEqual, "mid")
				So(list[0].SimilarityScore, ShouldBeGreaterThan, list[1].SimilarityScore)
			})
		})

		Convey("When the list is requested twice", func() {
			first, err1 := svc.SimilarEvents(ctx, "ref", 1)
			second, err2 := svc.SimilarEvents(ctx, "ref", 1)

			Convey("Then the cached list is served", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})

		Convey("When a better event is added after caching", func() {
			_, err := svc.SimilarEvents(ctx, "ref", 1)
			So(err, ShouldBeNil)
			So(svc.UpsertEvent(ctx, eventAt("twin", 55.7558, 37.6173, start, "yoga", "cafe")), ShouldBeNil)
			list, err := svc.SimilarEvents(ctx, "ref", 1)

			Convey("Then the stale list is not served", func() {
				So(err, ShouldBeNil)
				So(list[0].Event.ID, ShouldEqual, "twin")
			})
		})

		Convey("When the event does not exist", func() {
			_, err := svc.SimilarEvents(ctx, "ghost", 5)

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_StatelessScoring(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc, err := service.New(service.WithClock(clock))
		So(err, ShouldBeNil)

		Convey("When buddies are scored from supplied profiles", func() {
			matches, err := svc.ScoreBuddies(ctx,
				profile("r", 1997, "Йога", "Кафе"),
				[]repository.ProfileRow{profile("r", 1997), profile("c", 1995, "Кафе", "Фитнес")},
			)

			Convey("Then the requester is never returned", func() {
				So(err, ShouldBeNil)
				So(len(matches), ShouldEqual, 1)
				So(matches[0].User.ID, ShouldEqual, "c")
			})

			Convey("Then nothing is stored", func() {
				profiles, _ := svc.Counts(ctx)
				So(profiles, ShouldEqual, 0)
			})
		})

		Convey("When a supplied candidate is invalid", func() {
			_, err := svc.ScoreBuddies(ctx, profile("r", 1997), []repository.ProfileRow{{ID: ""}})

			Convey("Then the row is named in the error", func() {
				So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "candidates[0]")
			})
		})

		Convey("When events are scored from supplied rows", func() {
			ref := repository.EventRow{ID: "ref", Interests: []string{"a", "b"}, StartsAt: clock()}
			cand := repository.EventRow{ID: "c", Interests: []string{"a"}, StartsAt: clock()}
			list, err := svc.ScoreEvents(ctx, ref, []repository.EventRow{cand}, 5)

			Convey("Then the asymmetric interest term and neutral location apply", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 1)
				// 5*1/2 + 0.5 + 2
				So(list[0].SimilarityScore, ShouldAlmostEqual, 5.0, 1e-9)
			})
		})
	})
}
