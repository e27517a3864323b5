package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/ranker/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "./ranker.db")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 4)
				convey.So(cfg.KFactor, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RANKER_BATCH_SIZE", "6")
			_ = os.Setenv("RANKER_K_FACTOR", "24")
			_ = os.Setenv("RANKER_STORE_DRIVER", "sqlite")
			_ = os.Setenv("RANKER_STORE_DSN", "file:ranker.db")
			_ = os.Setenv("RANKER_LOG_FORMAT", "json")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.BatchSize, convey.ShouldEqual, 6)
				convey.So(cfg.KFactor, convey.ShouldEqual, 24)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "file:ranker.db")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
# ranking rounds
batch_size: 5
media_dir: "/srv/media"
leaderboard_limit: 50
initial_rating: 1500
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("RANKER_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values are applied over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.BatchSize, convey.ShouldEqual, 5)
				convey.So(cfg.MediaDir, convey.ShouldEqual, "/srv/media")
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 50)
				convey.So(cfg.InitialRating, convey.ShouldEqual, 1500)
				convey.So(cfg.StatsLimit, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When both file and env vars are set", func() {
			tmpFile := createTempConfigFile("batch_size: 5\nstats_limit: 8\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("RANKER_CONFIG", tmpFile)
			_ = os.Setenv("RANKER_BATCH_SIZE", "3")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars win over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.BatchSize, convey.ShouldEqual, 3)
				convey.So(cfg.StatsLimit, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("RANKER_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it returns a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("RANKER_CONFIG", "/non/existent/ranker.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it returns an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a numeric env var is not a number", func() {
			_ = os.Setenv("RANKER_BATCH_SIZE", "four")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it returns an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the batch size is zero", func() {
			_ = os.Setenv("RANKER_BATCH_SIZE", "0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it returns a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When postgres is selected with an empty DSN", func() {
			_ = os.Setenv("RANKER_STORE_DRIVER", "postgres")
			_ = os.Setenv("RANKER_STORE_DSN", "")

			_, err := config.Load(ctx)

			convey.Convey("Then it returns a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"RANKER_CONFIG",
		"RANKER_BATCH_SIZE",
		"RANKER_K_FACTOR",
		"RANKER_STORE_DRIVER",
		"RANKER_STORE_DSN",
		"RANKER_LOG_FORMAT",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "ranker-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
