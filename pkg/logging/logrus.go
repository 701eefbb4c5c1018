package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

const FormatJSON = "json"

// Logrus builds component loggers that share one level, format and output.
type Logrus struct {
	level  string
	format string
	output io.Writer
}

func NewLogrus(level string, output io.Writer) *Logrus {
	return &Logrus{level: level, output: output}
}

// WithFormat switches the output to JSON when format is "json".
func (l *Logrus) WithFormat(format string) *Logrus {
	l.format = format
	return l
}

// Get returns an entry tagged with the component it logs for.
func (l *Logrus) Get(context string) *logrus.Entry {
	log := logrus.New()
	level, err := logrus.ParseLevel(l.level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if l.format == FormatJSON {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	log.SetOutput(l.output)
	return log.WithFields(logrus.Fields{
		"Context": context,
	})
}
