package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSetup(t *testing.T) {
	Convey("Given no endpoint", t, func() {
		shutdown, err := Setup(context.Background(), "scoreboard", "")

		Convey("Setup is a no-op", func() {
			So(err, ShouldBeNil)
			So(shutdown(context.Background()), ShouldBeNil)
		})
	})
}

func TestSpans(t *testing.T) {
	Convey("Given an in-memory span recorder", t, func() {
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		prev := otel.GetTracerProvider()
		otel.SetTracerProvider(tp)
		Reset(func() { otel.SetTracerProvider(prev) })

		Convey("End marks failed spans with an error status", func() {
			_, span := Start(context.Background(), "repository.upsert")
			End(span, errors.New("disk full"))

			spans := recorder.Ended()
			So(spans, ShouldHaveLength, 1)
			So(spans[0].Name(), ShouldEqual, "repository.upsert")
			So(spans[0].Status().Code, ShouldEqual, codes.Error)
		})

		Convey("Successful spans keep an unset status", func() {
			_, span := Start(context.Background(), "relay.dispatch")
			End(span, nil)
			So(recorder.Ended()[0].Status().Code, ShouldEqual, codes.Unset)
		})
	})
}
