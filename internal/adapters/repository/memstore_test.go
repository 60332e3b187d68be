package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openoutings/outings/internal/adapters/repository"
	"github.com/openoutings/outings/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
}

func profile(id string, interests ...string) repository.ProfileRow {
	return repository.ProfileRow{ID: id, Interests: interests}
}

func event(id string, interests ...string) repository.EventRow {
	return repository.EventRow{
		ID:        id,
		Interests: interests,
		StartsAt:  time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStoreProfiles(t *testing.T) {
	Convey("Given an empty store with a fixed clock", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(repository.WithClock(fixedClock()))

		Convey("When a full profile is stored", func() {
			p := profile("u1", "hiking", "Coffee", "hiking")
			p.Gender = strPtr(" Female ")
			p.BirthYear = intPtr(1995)
			p.Buddy = &repository.BuddyPrefsRow{Enabled: true, AgeMin: intPtr(25), AgeMax: intPtr(35), PreferredGender: "MALE"}
			So(s.UpsertProfile(ctx, p), ShouldBeNil)

			u, err := s.Profile(ctx, "u1")

			Convey("Then it maps to the scorer's view", func() {
				So(err, ShouldBeNil)
				So(*u.Gender, ShouldEqual, "female")
				So(*u.Age, ShouldEqual, 30)
				So(u.Interests, ShouldResemble, []string{"hiking", "Coffee"})
				So(u.Preferences.Enabled, ShouldBeTrue)
				So(*u.Preferences.PreferredAgeMin, ShouldEqual, 25)
				So(u.Preferences.PreferredGender, ShouldEqual, model.GenderMale)
			})

			Convey("Then it is counted", func() {
				profiles, events := s.Count(ctx)
				So(profiles, ShouldEqual, 1)
				So(events, ShouldEqual, 0)
			})
		})

		Convey("When the caller changes its row after storing it", func() {
			p := profile("u1", "hiking")
			p.Gender = strPtr("male")
			p.BirthYear = intPtr(1990)
			p.Buddy = &repository.BuddyPrefsRow{Enabled: true, AgeMin: intPtr(20), PreferredGender: "FEMALE"}
			So(s.UpsertProfile(ctx, p), ShouldBeNil)

			So(p.Buddy.PreferredGender, ShouldEqual, "FEMALE")
			p.Buddy.Enabled = false
			*p.Buddy.AgeMin = 60
			*p.Gender = "other"
			*p.BirthYear = 2000
			p.Interests[0] = "golf"

			u, err := s.Profile(ctx, "u1")

			Convey("Then the stored profile is unaffected", func() {
				So(err, ShouldBeNil)
				So(u.Preferences.Enabled, ShouldBeTrue)
				So(*u.Preferences.PreferredAgeMin, ShouldEqual, 20)
				So(u.Preferences.PreferredGender, ShouldEqual, model.GenderFemale)
				So(*u.Gender, ShouldEqual, "male")
				So(*u.Age, ShouldEqual, 35)
				So(u.Interests, ShouldResemble, []string{"hiking"})
			})
		})

		Convey("When a profile is stored twice", func() {
			So(s.UpsertProfile(ctx, profile("u1", "a")), ShouldBeNil)
			So(s.UpsertProfile(ctx, profile("u1", "b")), ShouldBeNil)
			u, _ := s.Profile(ctx, "u1")

			Convey("Then the last write wins", func() {
				So(u.Interests, ShouldResemble, []string{"b"})
				profiles, _ := s.Count(ctx)
				So(profiles, ShouldEqual, 1)
			})
		})

		Convey("When preferences carry no gender", func() {
			p := profile("u1")
			p.Buddy = &repository.BuddyPrefsRow{Enabled: true}
			So(s.UpsertProfile(ctx, p), ShouldBeNil)
			u, _ := s.Profile(ctx, "u1")

			Convey("Then any gender is accepted", func() {
				So(u.Preferences.PreferredGender, ShouldEqual, model.GenderAny)
				So(u.Gender, ShouldBeNil)
				So(u.Age, ShouldBeNil)
			})
		})

		Convey("When a profile is missing", func() {
			_, err := s.Profile(ctx, "ghost")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestRowValidation(t *testing.T) {
	Convey("Given a store", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()

		cases := []struct {
			name string
			row  repository.ProfileRow
			want string
		}{
			{"missing id", profile(""), "id is required"},
			{"unknown gender", repository.ProfileRow{ID: "u", Gender: strPtr("robot")}, "gender must be one of"},
			{"empty interest", profile("u", "a", ""), "interests[1] is required"},
			{"old birth year", repository.ProfileRow{ID: "u", BirthYear: intPtr(1800)}, "birth_year must be at least 1900"},
			{"inverted age window", repository.ProfileRow{ID: "u", Buddy: &repository.BuddyPrefsRow{AgeMin: intPtr(40), AgeMax: intPtr(30)}}, "buddy.preferred_age_max"},
			{"bad preferred gender", repository.ProfileRow{ID: "u", Buddy: &repository.BuddyPrefsRow{PreferredGender: "cats"}}, "buddy.preferred_gender"},
		}
		for _, tc := range cases {
			Convey("When a profile has "+tc.name, func() {
				err := s.UpsertProfile(ctx, tc.row)

				Convey("Then it is rejected", func() {
					So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)
					So(err.Error(), ShouldContainSubstring, tc.want)
					profiles, _ := s.Count(ctx)
					So(profiles, ShouldEqual, 0)
				})
			})
		}

		Convey("When an event has no start time", func() {
			err := s.UpsertEvent(ctx, repository.EventRow{ID: "e1"})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "starts_at is required")
			})
		})

		Convey("When an event has an out of range latitude", func() {
			e := event("e1")
			e.Lat, e.Lng = floatPtr(95), floatPtr(30)
			err := s.UpsertEvent(ctx, e)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "lat must be a valid latitude")
			})
		})

		Convey("When an event has only one coordinate", func() {
			e := event("e1")
			e.Lat = floatPtr(55.75)
			err := s.UpsertEvent(ctx, e)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "lat and lng must be set together")
			})
		})
	})
}

func TestMemoryStoreEvents(t *testing.T) {
	Convey("Given a store with events", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()

		located := event("b", "yoga", "yoga", "cafe")
		located.Lat, located.Lng = floatPtr(55.75), floatPtr(37.62)
		So(s.UpsertEvent(ctx, located), ShouldBeNil)
		So(s.UpsertEvent(ctx, event("c")), ShouldBeNil)
		So(s.UpsertEvent(ctx, event("a", "run")), ShouldBeNil)

		Convey("When one event is read", func() {
			e, err := s.Event(ctx, "b")

			Convey("Then it maps to the scorer's view", func() {
				So(err, ShouldBeNil)
				So(e.Interests, ShouldResemble, []string{"yoga", "cafe"})
				So(e.HasLocation(), ShouldBeTrue)
				So(*e.Lat, ShouldEqual, 55.75)
			})
		})

		Convey("When all events are listed", func() {
			all, err := s.Events(ctx)

			Convey("Then they are ordered by id", func() {
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 3)
				So(all[0].ID, ShouldEqual, "a")
				So(all[1].ID, ShouldEqual, "b")
				So(all[2].ID, ShouldEqual, "c")
				So(all[2].HasLocation(), ShouldBeFalse)
			})
		})

		Convey("When an event is missing", func() {
			_, err := s.Event(ctx, "zzz")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := s.Events(cctx)

			Convey("Then the context error is returned", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStoreAttendance(t *testing.T) {
	Convey("Given an event with three attendees", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		So(s.UpsertEvent(ctx, event("e1")), ShouldBeNil)
		for _, id := range []string{"carol", "alice", "bob", "dave"} {
			So(s.UpsertProfile(ctx, profile(id)), ShouldBeNil)
		}
		for _, id := range []string{"carol", "alice", "bob"} {
			So(s.AddAttendee(ctx, "e1", id), ShouldBeNil)
		}

		Convey("When an attendee asks for co-attendees", func() {
			req, others, err := s.CoAttendees(ctx, "e1", "bob")

			Convey("Then the others are returned in id order without the requester", func() {
				So(err, ShouldBeNil)
				So(req.ID, ShouldEqual, "bob")
				So(len(others), ShouldEqual, 2)
				So(others[0].ID, ShouldEqual, "alice")
				So(others[1].ID, ShouldEqual, "carol")
			})
		})

		Convey("When a non-attendee asks", func() {
			_, _, err := s.CoAttendees(ctx, "e1", "dave")

			Convey("Then ErrNotAttendee is returned", func() {
				So(errors.Is(err, repository.ErrNotAttendee), ShouldBeTrue)
			})
		})

		Convey("When an attendee leaves", func() {
			So(s.RemoveAttendee(ctx, "e1", "alice"), ShouldBeNil)
			So(s.RemoveAttendee(ctx, "e1", "alice"), ShouldBeNil)
			_, others, err := s.CoAttendees(ctx, "e1", "bob")

			Convey("Then they are no longer listed", func() {
				So(err, ShouldBeNil)
				So(len(others), ShouldEqual, 1)
				So(others[0].ID, ShouldEqual, "carol")
			})
		})

		Convey("When joining unknown records", func() {
			errEvent := s.AddAttendee(ctx, "nope", "alice")
			errUser := s.AddAttendee(ctx, "e1", "ghost")
			errLeave := s.RemoveAttendee(ctx, "nope", "alice")
			_, _, errCo := s.CoAttendees(ctx, "nope", "alice")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(errEvent, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errUser, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errLeave, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errCo, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}
