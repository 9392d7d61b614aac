package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs a console logger tagged with app as the global zerolog logger.
func InitLogger(app string) zerolog.Logger {
	return InitLoggerTo(os.Stdout, app, false)
}

// InitLoggerTo is InitLogger with an explicit writer and color switch.
func InitLoggerTo(out io.Writer, app string, noColor bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
