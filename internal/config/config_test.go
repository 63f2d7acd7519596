package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arcade-progress/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a config file", t, func() {
		t.Setenv("ARCADE_TEST_PG_PASSWORD", "s3cret")
		path := writeConfig(t, `
server:
  port: 9090
storage:
  backend: sqlite
  sqlite_path: /tmp/arcade.db
postgres:
  password: ${ARCADE_TEST_PG_PASSWORD}
broadcast:
  enabled: true
  interval: 2s
limits:
  max_limit: 50
`)

		Convey("File values are read and the rest defaulted", func() {
			cfg, err := config.Load(path)
			So(err, ShouldBeNil)
			So(cfg.Server.Port, ShouldEqual, 9090)
			So(cfg.Server.ReadTimeout, ShouldEqual, 5*time.Second)
			So(cfg.Storage.Backend, ShouldEqual, config.BackendSQLite)
			So(cfg.Storage.SQLitePath, ShouldEqual, "/tmp/arcade.db")
			So(cfg.Postgres.Password, ShouldEqual, "s3cret")
			So(cfg.Broadcast.Enabled, ShouldBeTrue)
			So(cfg.Broadcast.Interval, ShouldEqual, 2*time.Second)
			So(cfg.Limits.MaxLimit, ShouldEqual, 50)
			So(cfg.Limits.DefaultTop, ShouldEqual, 10)
			So(cfg.Redis.KeyPrefix, ShouldEqual, "arcade")
		})

		Convey("Environment overrides win over the file", func() {
			t.Setenv("ARCADE_SERVER__PORT", "7000")
			t.Setenv("ARCADE_STORAGE__BACKEND", "postgres")
			t.Setenv("ARCADE_BROADCAST__INTERVAL", "750ms")
			t.Setenv("ARCADE_KAFKA__BROKERS", "k1:9092")

			cfg, err := config.Load(path)
			So(err, ShouldBeNil)
			So(cfg.Server.Port, ShouldEqual, 7000)
			So(cfg.Storage.Backend, ShouldEqual, config.BackendPostgres)
			So(cfg.Broadcast.Interval, ShouldEqual, 750*time.Millisecond)
			So(cfg.Kafka.Brokers, ShouldResemble, []string{"k1:9092"})
			So(cfg.Storage.SQLitePath, ShouldEqual, "/tmp/arcade.db")
		})
	})

	Convey("Given a missing file", t, func() {
		_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
		So(err, ShouldNotBeNil)
	})

	Convey("Given an unknown backend", t, func() {
		path := writeConfig(t, "storage:\n  backend: floppy\n")
		_, err := config.Load(path)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "floppy")
	})

	Convey("Given default limits above the maximum", t, func() {
		path := writeConfig(t, "limits:\n  default_recent: 500\n  max_limit: 100\n")
		_, err := config.Load(path)
		So(err, ShouldNotBeNil)
	})
}

func TestDefaults(t *testing.T) {
	Convey("DefaultConfig is usable as is", t, func() {
		cfg := config.DefaultConfig()
		So(cfg.Validate(), ShouldBeNil)
		So(cfg.Storage.Backend, ShouldEqual, config.BackendMemory)
		So(cfg.Limits.DefaultTop, ShouldEqual, 10)
		So(cfg.Limits.DefaultRecent, ShouldEqual, 20)
		So(cfg.Limits.HotThreshold, ShouldEqual, 5)
		So(cfg.Redis.Enabled, ShouldBeFalse)
		So(cfg.Kafka.Enabled, ShouldBeFalse)
		So(cfg.Kafka.MaxAttempts, ShouldEqual, 3)
		So(cfg.Kafka.RetryBackoff, ShouldEqual, 500*time.Millisecond)
	})

	Convey("FromEnv applies overrides on top of defaults", t, func() {
		t.Setenv("ARCADE_LOG__LEVEL", "debug")
		t.Setenv("ARCADE_REDIS__ENABLED", "true")
		cfg, err := config.FromEnv()
		So(err, ShouldBeNil)
		So(cfg.Log.Level, ShouldEqual, "debug")
		So(cfg.Redis.Enabled, ShouldBeTrue)
		So(cfg.Server.Port, ShouldEqual, 8080)
	})

	Convey("Postgres connection string", t, func() {
		pg := config.PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "arcade"}
		So(pg.ConnectionString(), ShouldEqual, "postgres://u:p@db:5432/arcade?sslmode=disable")
	})

	Convey("Log levels parse with an info fallback", t, func() {
		So(config.LogConfig{Level: "debug"}.SlogLevel(), ShouldEqual, slog.LevelDebug)
		So(config.LogConfig{Level: "WARN"}.SlogLevel(), ShouldEqual, slog.LevelWarn)
		So(config.LogConfig{Level: "chatty"}.SlogLevel(), ShouldEqual, slog.LevelInfo)
	})
}
