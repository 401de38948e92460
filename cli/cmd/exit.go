package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/warroom/backend"
	"github.com/pithecene-io/warroom/transport"
)

// Exit codes.
const (
	exitSuccess = 0
	// exitError covers usage, config and local failures.
	exitError = 1
	// exitExhausted means the client gave up reconnecting.
	exitExhausted = 2
	// exitBackend means the backend answered with a non-2xx status.
	exitBackend = 3
)

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var statusErr *backend.StatusError
	switch {
	case err == nil:
		return exitSuccess
	case transport.IsExhausted(err):
		return exitExhausted
	case errors.As(err, &statusErr):
		return exitBackend
	default:
		return exitError
	}
}

// exitErr wraps err so the exit handler sees its code. Errors that already
// carry a code pass through.
func exitErr(err error) error {
	if err == nil {
		return nil
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return err
	}
	return cli.Exit(err.Error(), exitCode(err))
}
