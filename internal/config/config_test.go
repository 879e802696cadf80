package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	Port         string `toml:"server.port" env:"SERVER_PORT"`
	NatsPort     int    `toml:"nats.port" env:"NATS_PORT"`
	NatsEmbedded bool   `toml:"nats.embedded" env:"NATS_EMBEDDED"`
	LoggingLevel string `toml:"logging.level" env:"LOGGING_LEVEL"`
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_FileThenEnvPrecedence(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = ":9000"

[nats]
port = 4333
embedded = false

[logging]
level = "debug"
`)
	t.Setenv("FRAMESYNC_LOGGING_LEVEL", "error")

	opts := &testOptions{Config: path, Port: ":8090", NatsPort: 4222, NatsEmbedded: true, LoggingLevel: "info"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatal(err)
	}

	if opts.Port != ":9000" {
		t.Errorf("port: got %q, want file value", opts.Port)
	}
	if opts.NatsPort != 4333 {
		t.Errorf("nats port: got %d, want file value", opts.NatsPort)
	}
	if opts.NatsEmbedded {
		t.Error("nats embedded: file value should apply")
	}
	if opts.LoggingLevel != "error" {
		t.Errorf("logging level: got %q, want env override", opts.LoggingLevel)
	}
}

func TestLoadConfig_ExplicitFlagsKeepTheirValue(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = ":9000"
`)

	cmd := &cobra.Command{}
	cmd.Flags().String("port", ":8090", "")
	if err := cmd.Flags().Set("port", ":7777"); err != nil {
		t.Fatal(err)
	}

	opts := &testOptions{Config: path, Port: ":7777"}
	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatal(err)
	}

	if opts.Port != ":7777" {
		t.Errorf("port: got %q, want CLI value kept", opts.Port)
	}
}

func TestLoadConfig_MissingFileIsFine(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Port: ":8090"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatal(err)
	}
	if opts.Port != ":8090" {
		t.Errorf("port: got %q, want default kept", opts.Port)
	}
}

func TestLoadConfig_MalformedFileFails(t *testing.T) {
	path := writeConfigFile(t, "not toml [[[")
	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err == nil {
		t.Error("expected an error for a malformed config file")
	}
}
