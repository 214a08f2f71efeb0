// Package requests binds and validates incoming request bodies
package requests

import (
	"net/url"

	"github.com/thedevsaddam/govalidator"
)

// ValidationError reports the first invalid field of a request
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the client facing message
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateStruct runs govalidator over data and returns every failing field
func ValidateStruct(data interface{}, rules govalidator.MapData, messages govalidator.MapData) url.Values {
	opts := govalidator.Options{
		Data:     data,
		Rules:    rules,
		Messages: messages,
	}
	return govalidator.New(opts).ValidateStruct()
}

// firstFieldError returns the first message for field, if any
func firstFieldError(errs url.Values, field string) *ValidationError {
	if msgs, ok := errs[field]; ok && len(msgs) > 0 {
		return &ValidationError{Field: field, Message: msgs[0]}
	}
	return nil
}
