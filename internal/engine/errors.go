package engine

import (
	"errors"
	"fmt"
)

// ErrNoRepositories indicates a run with nothing selected to operate on.
var ErrNoRepositories = errors.New("no repositories found matching filter")

// StepError is a fatal failure of one installation or cleanup step, tied to
// the repository it was running for.
type StepError struct {
	Repo string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed for %s: %v", e.Step, e.Repo, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ApkInstallError is a failed APK install. It is fatal unless the step set
// allow_failures.
type ApkInstallError struct {
	Apk string
	Err error
}

func (e *ApkInstallError) Error() string {
	return fmt.Sprintf("installing APK %s: %v", e.Apk, e.Err)
}

func (e *ApkInstallError) Unwrap() error {
	return e.Err
}
