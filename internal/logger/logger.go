package logger

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	l *logrus.Entry
}

type Config struct {
	Level  string
	Format string
	Output io.Writer
}

func New(conf Config) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(conf.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	base.SetLevel(level)

	if strings.EqualFold(conf.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		//nolint:exhaustruct
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}

	if conf.Output != nil {
		base.SetOutput(conf.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	return &Logger{l: logrus.NewEntry(base)}
}

// Discard is handy for tests.
func Discard() *Logger {
	return New(Config{Level: "error", Output: io.Discard})
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{l: l.l.WithField(key, value)}
}

func (l *Logger) LogErrorf(format string, v ...any) {
	l.l.Errorf(format, v...)
}

func (l *Logger) LogWarnf(format string, v ...any) {
	l.l.Warnf(format, v...)
}

func (l *Logger) LogInfo(format string, v ...any) {
	l.l.Infof(format, v...)
}

func (l *Logger) LogDebugf(format string, v ...any) {
	l.l.Debugf(format, v...)
}

// Std exposes the logger to libraries that want a *log.Logger, such as http.Server.
func (l *Logger) Std() *log.Logger {
	return log.New(l.l.WriterLevel(logrus.ErrorLevel), "", 0)
}
