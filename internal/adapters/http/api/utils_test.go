package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestResolveSince(t *testing.T) {
	Convey("Given a fixed clock in a non-UTC zone", t, func() {
		now := time.Date(2024, 3, 1, 1, 30, 0, 0, time.FixedZone("X", 3*3600))

		Convey("today is the start of the current UTC day", func() {
			So(resolveSince("today", now), ShouldEqual, "2024-02-29T00:00:00Z")
		})

		Convey("blank and unknown values pass through trimmed", func() {
			So(resolveSince("  ", now), ShouldEqual, "")
			So(resolveSince(" yesterday ", now), ShouldEqual, "yesterday")
		})
	})
}

func TestClientKey(t *testing.T) {
	Convey("RemoteAddr without a port is used as-is", t, func() {
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		r.RemoteAddr = "unix-socket"
		So(clientKey(r, false), ShouldEqual, "unix-socket")
	})

	Convey("Blank proxy headers fall back to the peer address", t, func() {
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		r.RemoteAddr = "[2001:db8::1]:443"
		r.Header.Set("X-Forwarded-For", " , 10.0.0.1")
		So(clientKey(r, true), ShouldEqual, "2001:db8::1")
	})
}

func TestError(t *testing.T) {
	Convey("Given a classified error", t, func() {
		cause := errors.New("boom")
		err := WrapKind("api.op", ErrBadRequest, cause)

		Convey("It matches both its kind and its cause", func() {
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("NewKind and Wrap render without the missing half", func() {
			So(NewKind("api.op", ErrNotFound).Error(), ShouldEqual, "api.op: not found")
			So(Wrap("api.op", cause).Error(), ShouldEqual, "api.op: boom")
			So(Wrap("api.op", nil), ShouldBeNil)
		})
	})

	Convey("statusKind maps reply codes", t, func() {
		So(statusKind(http.StatusLengthRequired), ShouldEqual, ErrLengthRequired)
		So(statusKind(http.StatusRequestEntityTooLarge), ShouldEqual, ErrPayloadTooLarge)
		So(statusKind(http.StatusTeapot), ShouldEqual, ErrInternal)
	})
}

func TestErrorType(t *testing.T) {
	Convey("errorType buckets status codes", t, func() {
		So(errorType(http.StatusServiceUnavailable), ShouldEqual, "server_error")
		So(errorType(http.StatusTooManyRequests), ShouldEqual, "rate_limit")
		So(errorType(http.StatusNotFound), ShouldEqual, "not_found")
		So(errorType(http.StatusUnauthorized), ShouldEqual, "unauthorized")
		So(errorType(http.StatusRequestEntityTooLarge), ShouldEqual, "client_error")
		So(errorType(http.StatusOK), ShouldEqual, "unknown")
	})
}
