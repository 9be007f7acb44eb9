// (c) go2rtc

package core

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var Logger = zerolog.Nop()

// InitLogger builds the process logger. Unknown levels fall back to info.
func InitLogger(level string) zerolog.Logger {
	Logger = NewLogger(os.Stdout, level)
	return Logger
}

func NewLogger(out io.Writer, level string) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: out}
	console.NoColor = true
	if f, ok := out.(*os.File); ok {
		console.NoColor = !isatty.IsTerminal(f.Fd())
	}
	console.TimeFormat = "15:04:05.000"

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	return zerolog.New(console).Level(lvl).With().Timestamp().Logger()
}
