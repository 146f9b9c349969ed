package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Options struct {
	// Verbose enables debug level logging.
	Verbose bool
	// JSON switches from the text formatter to the JSON formatter.
	JSON   bool
	Output io.Writer
}

func Init(options Options) {
	if options.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	if options.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if options.Output != nil {
		logrus.SetOutput(options.Output)
	} else {
		logrus.SetOutput(os.Stderr)
	}
}
