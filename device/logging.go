package device

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the package-wide logger every Device shares; NewDevice derives a
// per-device entry from it via WithDevice.
var Log = logrus.New()

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetLevel(logrus.InfoLevel)
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLogLevel parses and applies level (e.g. "debug", "warn").
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Log.SetLevel(lvl)
	return nil
}

// WithDevice returns a logger scoped to one peer address.
func WithDevice(addr Address) *logrus.Entry {
	return Log.WithField("device", string(addr))
}

// WithBearer adds bearer context to an existing entry.
func WithBearer(entry *logrus.Entry, bearer Bearer) *logrus.Entry {
	return entry.WithField("bearer", bearer.String())
}
