package assume

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// ErrorCategory classifies a failed exchange into one of a small set of
// stable categories, independent of provider error message wording.
type ErrorCategory string

const (
	CategoryTrustRejected      ErrorCategory = "trust_rejected"
	CategoryExternalIDMismatch ErrorCategory = "external_id_mismatch"
	CategoryMalformedPolicy    ErrorCategory = "malformed_policy"
	CategoryPermissionDenied   ErrorCategory = "permission_denied"
	CategoryThrottled          ErrorCategory = "throttled"
	CategoryOther              ErrorCategory = "other"
)

// ExchangeError is a categorized credential-exchange failure.
type ExchangeError struct {
	Category ErrorCategory
	RoleARN  string
	Op       string
	Err      error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s failed for %s (%s): %v", e.Op, e.RoleARN, e.Category, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// classifyExchangeError maps an STS API error to a category. An access
// denial on an exchange that carried an external id most likely means
// the trust policy's sts:ExternalId condition did not match.
func classifyExchangeError(err error, externalIDSupplied bool) ErrorCategory {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return CategoryOther
	}
	switch apiErr.ErrorCode() {
	case "AccessDenied", "AccessDeniedException":
		if externalIDSupplied {
			return CategoryExternalIDMismatch
		}
		return CategoryTrustRejected
	case "MalformedPolicyDocument", "MalformedPolicyDocumentException":
		return CategoryMalformedPolicy
	case "Throttling", "ThrottlingException", "TooManyRequestsException":
		return CategoryThrottled
	case "UnauthorizedOperation", "UnauthorizedAccess":
		return CategoryPermissionDenied
	default:
		return CategoryOther
	}
}

func newExchangeError(op, roleARN string, err error, externalIDSupplied bool) *ExchangeError {
	return &ExchangeError{
		Category: classifyExchangeError(err, externalIDSupplied),
		RoleARN:  roleARN,
		Op:       op,
		Err:      err,
	}
}
