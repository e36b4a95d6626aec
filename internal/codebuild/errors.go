package codebuild

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// ErrBuildNotFound is returned when a poll does not find the build
var ErrBuildNotFound = errors.New("build not found")

// throttleMessage is the substring CodeBuild and CloudWatch Logs use for rate limiting
const throttleMessage = "Rate exceeded"

// ValidationError reports a malformed or incomplete build request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsThrottling reports whether err is a remote rate-limit rejection
func IsThrottling(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), throttleMessage) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ThrottlingException"
	}
	return false
}
