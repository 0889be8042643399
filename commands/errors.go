package commands

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"
)

// exit codes
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// UsageError is returned when the command line is wrong,
// before anything is sent to galaxy
type UsageError struct {
	Command string
	Usage   string
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

func usageError(c *cli.Context, format string, args ...interface{}) error {
	return &UsageError{
		Command: c.Command.Name,
		Usage:   c.Command.ArgsUsage,
		Message: fmt.Sprintf(format, args...),
	}
}

// ExitCode maps the error returned by a command to the process exit code
// remote errors and failed analyses both exit with ExitFailed
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	usage := &UsageError{}
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return ExitFailed
}
