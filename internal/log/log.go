// Package log provides the zerolog loggers of walletkit components.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the global logger. Component loggers derive from it.
var Logger zerolog.Logger

// Component loggers.
var (
	Registry zerolog.Logger
	Network  zerolog.Logger
	Wallet   zerolog.Logger
	Manager  zerolog.Logger
	Client   zerolog.Logger
	Storage  zerolog.Logger
	Keystore zerolog.Logger
	Metrics  zerolog.Logger
)

func init() {
	Logger = newLogger(consoleWriter(os.Stdout), "info")
	initComponentLoggers()
}

// Init configures the global logger. Console output is colored unless
// jsonOutput is set. A non-empty file additionally receives JSON lines.
func Init(level string, jsonOutput bool, file string) error {
	var out io.Writer = os.Stdout
	if !jsonOutput {
		out = consoleWriter(os.Stdout)
	}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		out = zerolog.MultiLevelWriter(out, f)
	}
	Logger = newLogger(out, level)
	initComponentLoggers()
	return nil
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "off", "disabled":
		return zerolog.Disabled
	case "":
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func initComponentLoggers() {
	Registry = WithComponent("registry")
	Network = WithComponent("network")
	Wallet = WithComponent("wallet")
	Manager = WithComponent("manager")
	Client = WithComponent("client")
	Storage = WithComponent("storage")
	Keystore = WithComponent("keystore")
	Metrics = WithComponent("metrics")
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
