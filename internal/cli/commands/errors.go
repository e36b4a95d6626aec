package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alvesdmateus/codebuild-run-build/internal/ci"
	"github.com/alvesdmateus/codebuild-run-build/internal/codebuild"
	"github.com/alvesdmateus/codebuild-run-build/internal/gitbranch"
)

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// BuildFailedError is returned when a build settled with any status but SUCCEEDED
type BuildFailedError struct {
	Status string
}

func (e *BuildFailedError) Error() string {
	return "Build status: " + e.Status
}

// wrapError converts known failures to user-friendly messages.
// Anything unrecognized is returned as is.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var validationErr *codebuild.ValidationError
	if errors.As(err, &validationErr) {
		return &UserError{
			Message: validationErr.Message,
			Hint:    "Check the " + validationErr.Field + " setting of this run.",
		}
	}

	var remoteErr *gitbranch.UnsupportedRemoteError
	if errors.As(err, &remoteErr) {
		return &UserError{
			Message: remoteErr.Error(),
			Hint:    "Only github.com remotes are supported:\n  - https://github.com/owner/repo.git\n  - git@github.com:owner/repo.git",
		}
	}

	if errors.Is(err, codebuild.ErrBuildNotFound) {
		return &UserError{
			Message: "Build not found",
			Hint:    "The build may have been deleted, or the credentials in use cannot read it (codebuild:BatchGetBuilds).",
			Err:     err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &UserError{
			Message: "Timed out waiting for the build",
			Hint:    "The build keeps running in CodeBuild. Raise --timeout or build.timeout to wait longer.",
			Err:     err,
		}
	}

	return err
}

// printError writes err for a human, or as a workflow command annotation inside GitHub Actions
func printError(w io.Writer, env ci.Env, err error) {
	if ci.Getenv(env, "GITHUB_ACTIONS") == "true" {
		msg := strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A").Replace(err.Error())
		fmt.Fprintf(w, "::error::%s\n", msg)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
