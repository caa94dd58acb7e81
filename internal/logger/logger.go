package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type palette struct {
	reset, red, green, yellow, blue, purple, cyan, gray, bold string
}

var (
	ansi = palette{
		reset:  "\033[0m",
		red:    "\033[31m",
		green:  "\033[32m",
		yellow: "\033[33m",
		blue:   "\033[34m",
		purple: "\033[35m",
		cyan:   "\033[36m",
		gray:   "\033[37m",
		bold:   "\033[1m",
	}

	// Exactly three digits in the 2xx..5xx range
	statusCodeRegex = regexp.MustCompile(`^[2-5]\d{2}$`)
)

// Init installs the global logger. Development gets a coloured console writer on stdout,
// everything else gets JSON lines suitable for log shipping.
func Init(env string) {
	var out io.Writer = os.Stdout
	if env == "development" {
		out = consoleWriter(os.Stdout, isTerminal(os.Stdout))
	}

	log.Logger = zerolog.New(out).
		With().
		Timestamp().
		Str("env", env).
		Logger()

	switch env {
	case "development":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "test":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func consoleWriter(w io.Writer, color bool) zerolog.ConsoleWriter {
	p := palette{}
	if color {
		p = ansi
	}

	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "02.01.2006 15:04:05",
		NoColor:    !color,
		FormatLevel: func(i interface{}) string {
			level := strings.ToUpper(fmt.Sprintf("%s", i))
			switch level {
			case "DEBUG":
				return fmt.Sprintf("%s●%s", p.gray, p.reset)
			case "INFO":
				return fmt.Sprintf("%s●%s", p.blue, p.reset)
			case "WARN":
				return fmt.Sprintf("%s●%s", p.yellow, p.reset)
			case "ERROR", "FATAL", "PANIC":
				return fmt.Sprintf("%s●%s", p.red, p.reset)
			default:
				return level
			}
		},
		FormatMessage: func(i interface{}) string {
			msg := fmt.Sprintf("%-35s", i)
			switch {
			case strings.Contains(msg, "Request completed"):
				return p.gray + msg + p.reset
			case strings.Contains(msg, "Request started"):
				return p.bold + msg + p.reset
			}
			return msg
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s%s%s=", p.cyan, i, p.reset)
		},
		FormatFieldValue: func(i interface{}) string {
			val := fmt.Sprintf("%s", i)

			switch val {
			case "GET", "POST", "PUT", "DELETE", "PATCH":
				return p.purple + val + p.reset
			}

			if statusCodeRegex.MatchString(val) {
				switch val[0] {
				case '2':
					return p.green + val + p.reset
				case '3':
					return p.yellow + val + p.reset
				default:
					return p.red + val + p.reset
				}
			}
			return val
		},
	}
}
