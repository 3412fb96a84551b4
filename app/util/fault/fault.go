package fault

import (
	"errors"

	"github.com/samber/oops"
)

// Error kinds used across service boundaries. A kind decides how the
// gateway reports a failure to the user, so it must survive wrapping.
const (
	CodeValidation   = "validation"
	CodeTransport    = "transport"
	CodeStorage      = "storage"
	CodeCollaborator = "collaborator"
)

func Validation() oops.OopsErrorBuilder {
	return oops.Code(CodeValidation)
}

func Transport() oops.OopsErrorBuilder {
	return oops.Code(CodeTransport)
}

func Storage() oops.OopsErrorBuilder {
	return oops.Code(CodeStorage)
}

func Collaborator() oops.OopsErrorBuilder {
	return oops.Code(CodeCollaborator)
}

func HasCode(err error, code string) bool {
	var oopsErr oops.OopsError

	for e := err; e != nil; e = errors.Unwrap(e) {
		if errors.As(e, &oopsErr) && oopsErr.Code() == code {
			return true
		}
	}

	return false
}
