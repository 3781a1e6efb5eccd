package main

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmrun/runner"
)

const (
	exitGeneric     = 1
	exitInterrupted = 130
	exitSignalBase  = 128
)

// statusError carries a tolerated non-zero exit out of cobra.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.code)
}

// finish turns a run outcome into the command's error. A non-zero exit
// allowed by --warn still sets the process status.
func finish(res *runner.Result, err error) error {
	if err != nil {
		return err
	}
	if res != nil {
		if code := resultStatus(res); code != 0 {
			return &statusError{code: code}
		}
	}
	return nil
}

// exitStatus maps a run error onto this process's exit code so that it
// mirrors the command's own status where one exists.
func exitStatus(err error) int {
	var status *statusError
	if errors.As(err, &status) {
		return status.code
	}
	var interrupted *runner.Interrupted
	if errors.As(err, &interrupted) {
		return exitInterrupted
	}
	var failure *runner.Failure
	if errors.As(err, &failure) && failure.Result != nil {
		if code := resultStatus(failure.Result); code != 0 {
			return code
		}
	}
	return exitGeneric
}

func resultStatus(res *runner.Result) int {
	switch {
	case res.Exited == runner.ExitUnknown:
		return exitGeneric
	case res.Exited < 0:
		return exitSignalBase - res.Exited
	default:
		return res.Exited
	}
}

// quietExit reports errors whose output the user has already seen: a plain
// non-zero exit with both streams shown.
func quietExit(err error) bool {
	var status *statusError
	if errors.As(err, &status) {
		return true
	}
	var failure *runner.Failure
	if !errors.As(err, &failure) || failure.Reason != nil || failure.Result == nil {
		return false
	}
	var auth *runner.AuthFailure
	var timedOut *runner.CommandTimedOut
	if errors.As(err, &auth) || errors.As(err, &timedOut) {
		return false
	}
	return failure.Result.Hide == runner.HideNone
}
