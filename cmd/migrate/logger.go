package migrate

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
)

// consoleLogger prints migration progress to stdout with a fixed prefix, so
// schema runs are readable when invoked from deploy scripts.
type consoleLogger struct {
	prefix  string
	verbose bool
}

var _ migrate.Logger = (*consoleLogger)(nil)

func (l *consoleLogger) Printf(format string, v ...interface{}) {
	fmt.Printf(l.prefix+format, v...)
}

func (l *consoleLogger) Verbose() bool {
	return l.verbose
}
