// Package logging builds the logger shared by the scanner, the deleters and
// the SFTP session. The terminal belongs to the UI, so logs only ever go to
// a file.
package logging

import (
	"io"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
)

// EnvFile names the log file when --log is not given.
const EnvFile = "DUSCOPE_LOG"

// Config selects the log destination and verbosity.
type Config struct {
	// File is appended to. Empty falls back to $DUSCOPE_LOG, then to no logging.
	File  string
	Level string
}

// New returns a logger and a function that closes its file.
func New(cfg Config) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})

	level := logrus.InfoLevel
	if s := strings.TrimSpace(cfg.Level); s != "" {
		l, err := logrus.ParseLevel(s)
		if err != nil {
			return nil, nil, errors.WrapIfWithDetails(err, "invalid log level", "level", s)
		}
		level = l
	}
	log.SetLevel(level)

	path := cfg.File
	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path == "" {
		log.SetOutput(io.Discard)
		return log, func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, errors.WrapIfWithDetails(err, "cannot open log file", "path", path)
	}
	log.SetOutput(f)
	return log, f.Close, nil
}
