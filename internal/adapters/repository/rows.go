package repository

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openoutings/outings/internal/domain/model"
	"github.com/openoutings/outings/internal/domain/scoring"
)

// ProfileRow is a stored user profile.
type ProfileRow struct {
	ID        string         `json:"id" validate:"required,max=128"`
	Gender    *string        `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	BirthYear *int           `json:"birth_year,omitempty" validate:"omitempty,min=1900,max=2100"`
	Interests []string       `json:"interests" validate:"max=100,dive,required,max=64"`
	Buddy     *BuddyPrefsRow `json:"buddy,omitempty"`
}

// BuddyPrefsRow holds the stored buddy settings of a profile.
type BuddyPrefsRow struct {
	Enabled         bool   `json:"enabled"`
	AgeMin          *int   `json:"preferred_age_min,omitempty" validate:"omitempty,min=0,max=150"`
	AgeMax          *int   `json:"preferred_age_max,omitempty" validate:"omitempty,min=0,max=150"`
	PreferredGender string `json:"preferred_gender,omitempty" validate:"omitempty,oneof=male female other any"`
}

// EventRow is a stored event.
type EventRow struct {
	ID        string    `json:"id" validate:"required,max=128"`
	Title     string    `json:"title,omitempty" validate:"max=200"`
	Interests []string  `json:"interests" validate:"max=100,dive,required,max=64"`
	Lat       *float64  `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng       *float64  `json:"lng,omitempty" validate:"omitempty,longitude"`
	StartsAt  time.Time `json:"starts_at" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		p := sl.Current().Interface().(BuddyPrefsRow)
		if p.AgeMin != nil && p.AgeMax != nil && *p.AgeMin > *p.AgeMax {
			sl.ReportError(p.AgeMax, "preferred_age_max", "AgeMax", "agewindow", "")
		}
	}, BuddyPrefsRow{})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		e := sl.Current().Interface().(EventRow)
		if (e.Lat == nil) != (e.Lng == nil) {
			sl.ReportError(e.Lng, "lng", "Lng", "latlng", "")
		}
	}, EventRow{})
	return v
}

// normalize lower-cases the closed categories before validation.
func (p *ProfileRow) normalize() {
	if p.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*p.Gender))
		if g == "" {
			p.Gender = nil
		} else {
			p.Gender = &g
		}
	}
	if p.Buddy != nil {
		b := *p.Buddy
		b.PreferredGender = string(model.Gender(b.PreferredGender).Normalize())
		p.Buddy = &b
	}
}

// clone returns a copy of p that shares no pointers or slices with it.
func (p ProfileRow) clone() ProfileRow {
	p.Interests = append([]string(nil), p.Interests...)
	p.BirthYear = copyInt(p.BirthYear)
	if p.Gender != nil {
		g := *p.Gender
		p.Gender = &g
	}
	if p.Buddy != nil {
		b := *p.Buddy
		b.AgeMin = copyInt(b.AgeMin)
		b.AgeMax = copyInt(b.AgeMax)
		p.Buddy = &b
	}
	return p
}

// Validate normalizes p and checks it against its struct tags.
func (p *ProfileRow) Validate() error {
	p.normalize()
	return validateRow(p)
}

// Validate checks e against its struct tags.
func (e *EventRow) Validate() error {
	return validateRow(e)
}

func validateRow(row any) error {
	err := validate.Struct(row)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, ", "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "latitude", "longitude":
		return fmt.Sprintf("%s must be a valid %s", field, fe.Tag())
	case "agewindow":
		return fmt.Sprintf("%s must not be below preferred_age_min", field)
	case "latlng":
		return "lat and lng must be set together"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ForMatching maps the row to the buddy scorer's input. Age is derived from
// the birth year relative to now.
func (p ProfileRow) ForMatching(now time.Time) model.UserForMatching {
	u := model.UserForMatching{
		ID:        p.ID,
		Interests: scoring.UniqueTags(p.Interests),
	}
	if p.Gender != nil {
		g := *p.Gender
		u.Gender = &g
	}
	if p.BirthYear != nil {
		if age := now.Year() - *p.BirthYear; age >= 0 {
			u.Age = &age
		}
	}
	if p.Buddy != nil {
		u.Preferences = &model.BuddyPreferences{
			Enabled:         p.Buddy.Enabled,
			PreferredAgeMin: copyInt(p.Buddy.AgeMin),
			PreferredAgeMax: copyInt(p.Buddy.AgeMax),
			PreferredGender: model.Gender(p.Buddy.PreferredGender).Normalize(),
		}
	}
	return u
}

// ForScoring maps the row to the similarity scorer's input.
func (e EventRow) ForScoring() model.EventForScoring {
	return model.EventForScoring{
		ID:        e.ID,
		Interests: scoring.UniqueTags(e.Interests),
		Lat:       copyFloat(e.Lat),
		Lng:       copyFloat(e.Lng),
		StartsAt:  e.StartsAt,
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
