// Package logging backs the dragonboat named loggers (logger.GetLogger) with
// logrus. The factory is installed when the package is initialized, so every
// package that imports it logs through logrus from its first line on, including
// output written by init functions.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/sirupsen/logrus"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// dbKVLogger implements the ILogger interface on top of a logrus entry.
// Every named logger keeps its own level.
type dbKVLogger struct {
	level logger.LogLevel
	entry *logrus.Entry
}

func (l *dbKVLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *dbKVLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.entry.Debugf(format, args...)
	}
}

func (l *dbKVLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.entry.Infof(format, args...)
	}
}

func (l *dbKVLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.entry.Warnf(format, args...)
	}
}

func (l *dbKVLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.entry.Errorf(format, args...)
	}
}

func (l *dbKVLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		l.entry.Panicf(format, args...)
	}
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// base is shared by all named loggers. The per logger level decides what is
// passed on, so base itself logs everything.
var base = newBaseLogger()

func newBaseLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	return l
}

// CreateLogger implements the logger.Factory interface
func CreateLogger(pkgName string) logger.ILogger {
	return &dbKVLogger{
		level: logger.INFO,
		entry: base.WithField("pkg", pkgName),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// Names of the application loggers.
const (
	Driver   = "driver"
	Schema   = "schema"
	Conn     = "conn"
	SQLStore = "sqlstore"
	RPC      = "rpc"
	HTTP     = "transport/http"
	Socket   = "transport/socket"
	Client   = "client"
)

// loggerNames lists every named logger of the application.
var loggerNames = []string{Driver, Schema, Conn, SQLStore, RPC, HTTP, Socket, Client}

func init() {
	logger.SetLoggerFactory(CreateLogger)
}

// InitLoggers sets the level of all application loggers. It may be called
// more than once.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}

// SetLogFormat switches the output between "text" and "json".
func SetLogFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006/01/02 15:04:05"})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format: %s. must be one of text, json", format)
	}
	return nil
}

// SetOutput redirects all application loggers to w.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}
