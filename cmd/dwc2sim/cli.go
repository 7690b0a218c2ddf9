package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/ardnew/dwc2hcd/pkg"
)

// CLI is the command-line grammar.
type CLI struct {
	Config string    `help:"Load flag values from a YAML, TOML, or JSON file." type:"path" env:"DWC2SIM_CONFIG"`
	Log    LogConfig `embed:"" prefix:"log-"`

	Init InitCmd `cmd:"" help:"Write a sample scenario file."`
	Run  RunCmd  `cmd:"" help:"Run a scenario against the simulated controller."`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `help:"Minimum log level." enum:"debug,info,warn,error" default:"info" env:"DWC2SIM_LOG_LEVEL"`
	Format string `help:"Log format; auto selects text on a terminal and JSON otherwise." enum:"auto,text,json" default:"auto"`
}

// Apply configures the driver's logger to write to w.
func (c LogConfig) Apply(w io.Writer) {
	pkg.SetLogLevel(parseLevel(c.Level))
	pkg.SetLogFormat(c.format(w), w)
}

func (c LogConfig) format(w io.Writer) pkg.LogFormat {
	switch c.Format {
	case "json":
		return pkg.LogFormatJSON
	case "text":
		return pkg.LogFormatText
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return pkg.LogFormatText
	}
	return pkg.LogFormatJSON
}

// parseLevel returns the slog level named by s, or info when s names none.
func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
