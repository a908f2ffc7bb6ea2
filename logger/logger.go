package logger

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Logger is no-op until InitLogger is called
var Logger = zap.NewNop()

// InitLogger replaces Logger. An empty logFile logs to stdout. The JSON format
// is meant for log collection, console for running a node by hand
func InitLogger(logFile, level, format string) error {
	atom := zap.NewAtomicLevel()
	if err := atom.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	var encoder zapcore.Encoder
	switch format {
	case FormatJSON, "":
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "time"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	case FormatConsole:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("06-01-02 15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(cfg)
	default:
		return errors.Errorf("unknown log format %q", format)
	}

	writeSyncer := zapcore.Lock(os.Stdout)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		writeSyncer = zapcore.AddSync(file)
	}

	Logger = zap.New(zapcore.NewCore(encoder, writeSyncer, atom), zap.AddCaller(), zap.AddStacktrace(zapcore.FatalLevel))
	return nil
}
