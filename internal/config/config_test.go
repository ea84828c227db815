package config_test

import (
	"errors"
	"testing"

	"github.com/okian/rankd/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Backend, convey.ShouldEqual, config.BackendRedis)
			convey.So(cfg.RedisAddr(), convey.ShouldEqual, "127.0.0.1:6379")
			convey.So(cfg.ConnectTimeoutMS, convey.ShouldEqual, 10_000)
			convey.So(cfg.ReconnectIntervalMS, convey.ShouldEqual, 5_000)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the backend is unknown", func() {
			cfg.Backend = "sqlite"
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "unknown backend")
		})

		convey.Convey("When the redis port is out of range", func() {
			cfg.RedisPort = 70000
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the memory backend has no redis host", func() {
			cfg.Backend = config.BackendMemory
			cfg.RedisHost = ""
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the reconnect interval is zero", func() {
			cfg.ReconnectIntervalMS = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
