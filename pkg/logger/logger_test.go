package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openoutings/outings/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	Convey("Given the logger package", t, func() {
		ctx := context.Background()

		Convey("When initialized with JSON output", func() {
			var buf bytes.Buffer
			So(logger.Init(logger.WithFormat(logger.FormatJSON), logger.WithWriter(&buf)), ShouldBeNil)

			logger.Get().Info(ctx, "scored",
				logger.String("event_id", "e1"),
				logger.Int("candidates", 3),
				logger.Bool("cached", true),
				logger.Duration("took", 2*time.Millisecond),
				logger.Error(errors.New("boom")),
			)

			Convey("Then one JSON record is written with every field", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "scored")
				So(rec["event_id"], ShouldEqual, "e1")
				So(rec["candidates"], ShouldEqual, 3.0)
				So(rec["cached"], ShouldEqual, true)
				So(rec["error"], ShouldEqual, "boom")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When initialized with text output and a level", func() {
			var buf bytes.Buffer
			So(logger.Init(logger.WithWriter(&buf), logger.WithLevel("warn")), ShouldBeNil)

			logger.Get().Info(ctx, "hidden")
			logger.Get().Warn(ctx, "shown")

			Convey("Then records below the level are dropped", func() {
				out := buf.String()
				So(out, ShouldNotContainSubstring, "hidden")
				So(out, ShouldContainSubstring, "msg=shown")
			})

			Convey("And the level can be changed at runtime", func() {
				So(logger.SetLevelString("debug"), ShouldBeNil)
				logger.Get().Debug(ctx, "now visible")
				So(buf.String(), ShouldContainSubstring, "now visible")
			})
		})

		Convey("When given an unknown format or level", func() {
			Convey("Then Init fails", func() {
				So(logger.Init(logger.WithFormat("xml")), ShouldNotBeNil)
				So(logger.Init(logger.WithLevel("loud")), ShouldNotBeNil)
				So(logger.SetLevelString("verbose"), ShouldNotBeNil)
			})
		})
	})
}

func TestNamedAndWith(t *testing.T) {
	Convey("Given an initialized JSON logger", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithFormat(logger.FormatJSON), logger.WithWriter(&buf)), ShouldBeNil)
		ctx := context.Background()

		Convey("When a logger carries fields via With", func() {
			logger.Get().With(logger.String("component", "worker")).Info(ctx, "started")

			Convey("Then each record includes them", func() {
				So(buf.String(), ShouldContainSubstring, `"component":"worker"`)
			})
		})

		Convey("When a named logger writes a field", func() {
			logger.Named("cache").Info(ctx, "miss", logger.String("key", "k"))

			Convey("Then the field is grouped under the name", func() {
				line := strings.TrimSpace(buf.String())
				var rec map[string]any
				So(json.Unmarshal([]byte(line), &rec), ShouldBeNil)
				group, ok := rec["cache"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(group["key"], ShouldEqual, "k")
				So(logger.Sync(), ShouldBeNil)
			})
		})
	})
}
