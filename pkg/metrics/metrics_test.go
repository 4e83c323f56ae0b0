package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(
			WithRegistry(registry),
			WithNames("test", "unit"),
			WithLatencyBuckets(1, 10),
			WithRefreshInterval(5*time.Second),
			WithConstLabel("env", "test"),
			Disabled(),
		)

		Convey("Options are applied", func() {
			So(m.RefreshInterval(), ShouldEqual, 5*time.Second)
			So(m.Enabled(), ShouldBeFalse)
		})

		Convey("Collectors use the namespace and constant labels", func() {
			m.submissionsAccepted.Inc()
			expected := `
# HELP test_unit_submissions_accepted_total Submissions persisted and acknowledged with 202
# TYPE test_unit_submissions_accepted_total counter
test_unit_submissions_accepted_total{env="test"} 1
`
			So(testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_unit_submissions_accepted_total"), ShouldBeNil)
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Counters advance through the package helpers", func() {
			before := testutil.ToFloat64(globalManager.submissionsRejected.WithLabelValues(ReasonDecode))
			RecordSubmissionRejected(ReasonDecode)
			So(testutil.ToFloat64(globalManager.submissionsRejected.WithLabelValues(ReasonDecode)), ShouldEqual, before+1)

			attempts := testutil.ToFloat64(globalManager.relayAttempts.WithLabelValues(OutcomeRetry))
			RecordRelayAttempt(OutcomeRetry)
			So(testutil.ToFloat64(globalManager.relayAttempts.WithLabelValues(OutcomeRetry)), ShouldEqual, attempts+1)
		})

		Convey("Gauges hold the latest value", func() {
			UpdateRelayQueueSize(7)
			So(testutil.ToFloat64(globalManager.relayQueueSize), ShouldEqual, 7)
			UpdateRateLimitClients(3)
			So(testutil.ToFloat64(globalManager.rateLimitClients), ShouldEqual, 3)
		})

		Convey("Every helper is safe to call", func() {
			So(func() {
				RecordSubmissionAccepted()
				RecordRateLimitRejection()
				UpdateRepositoryEntriesTotal(1)
				RecordRepositoryUpdateLatency(1)
				RecordRepositoryQueryLatency(1)
				RecordRepositoryError("upsert")
				RecordRelayFailure()
				RecordRelayDuration(1)
				RecordRelayQueueDrop()
				UpdateRelayWorkers(2)
				RecordHTTPRequest("/healthz", "GET", "200")
				RecordHTTPRequestDuration("/healthz", "GET", "200", 1)
				RecordErrorByEndpoint("/scoreboard", "POST", "bad_request")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(4)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}
