// Package logger настраивает структурированный логгер сервиса.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New создаёт JSON-логгер с полем service во всех записях.
// Неизвестный уровень молча заменяется на info.
func New(serviceName, level string, out io.Writer) *logrus.Entry {
	l := logrus.New()

	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)

	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	l.SetLevel(logrus.InfoLevel)
	if level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			l.SetLevel(lvl)
		}
	}

	return l.WithField("service", serviceName)
}

// Discard — логгер для тестов.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
