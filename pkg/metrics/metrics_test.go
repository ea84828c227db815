package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "rankd")
				So(manager.subsystem, ShouldEqual, "ranking")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.refreshInterval, ShouldEqual, 10*time.Second)
			})

			Convey("And metrics should be registered with the prefix", func() {
				manager.backlogSize.Set(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_test_backlog_size" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording operation metrics", func() {
			before := testutil.ToFloat64(globalManager.operationsSubmitted.WithLabelValues("set"))
			RecordOperationSubmitted("set")
			RecordOperationSubmitted("set")

			Convey("Then the counter should advance", func() {
				after := testutil.ToFloat64(globalManager.operationsSubmitted.WithLabelValues("set"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording rejections, latency and failures", func() {
			So(func() {
				RecordOperationRejected("update", "reserved_nickname")
				RecordOperationLatency("get", 1.5)
				RecordOperationFailure("delete")
				RecordStoreError("get", "disconnected")
			}, ShouldNotPanic)
		})

		Convey("When updating gauges", func() {
			UpdateBacklogSize(7)
			UpdateTasksInFlight(3)
			UpdateConnectionState(2)

			Convey("Then the gauges should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.backlogSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.tasksInFlight), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.connectionState), ShouldEqual, 2)
			})
		})

		Convey("When recording backlog and reconnect counters", func() {
			before := testutil.ToFloat64(globalManager.backlogReplays)
			RecordBacklogReplays(4)
			RecordBacklogPush("update")
			RecordReconnectAttempt()
			RecordReconnectSuccess()
			RecordTaskPanic()

			Convey("Then replays should be added in bulk", func() {
				So(testutil.ToFloat64(globalManager.backlogReplays)-before, ShouldEqual, 4)
			})
		})

		Convey("When recording HTTP and system metrics", func() {
			So(func() {
				RecordHTTPRequest("leaderboard", "GET", "200")
				RecordHTTPRequestDuration("leaderboard", "GET", "200", 5.0)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("When fetching the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

func TestInit(t *testing.T) {
	Convey("Given a reconfigured global manager", t, func() {
		before := GetRegistry()
		defer Init()

		Init(WithMetricPrefix("edge"), WithRefreshInterval(3*time.Second), WithCustomLabels(map[string]string{"backend": "memory"}))
		UpdateBacklogSize(5)

		Convey("Then recorders should report to a fresh registry", func() {
			So(GetRegistry(), ShouldNotEqual, before)
			n, err := testutil.GatherAndCount(GetRegistry(), "rankd_ranking_edge_backlog_size")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})

		Convey("Then the refresh interval should be exposed", func() {
			So(RefreshInterval(), ShouldEqual, 3*time.Second)
		})
	})

	Convey("Given invalid histogram buckets", t, func() {
		manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithHistogramBuckets([]float64{5, 1}))

		Convey("Then the millisecond defaults should be kept", func() {
			So(manager.histogramBuckets, ShouldResemble, defaultLatencyBuckets)
		})
	})
}

func TestMetricsDisabled(t *testing.T) {
	Convey("Given a disabled global manager", t, func() {
		prev := globalManager.enabled
		globalManager.enabled = false
		defer func() { globalManager.enabled = prev }()

		before := testutil.ToFloat64(globalManager.operationsSubmitted.WithLabelValues("get"))
		RecordOperationSubmitted("get")

		Convey("Then operation counters should not move", func() {
			So(testutil.ToFloat64(globalManager.operationsSubmitted.WithLabelValues("get")), ShouldEqual, before)
		})
	})
}
