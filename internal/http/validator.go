package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

var validate = validator.New()

// checkRequest validates v, returning the 400 body on failure or nil
func checkRequest(v any) *core.ErrorResponse {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	resp := &core.ErrorResponse{
		Error:   "validation failed",
		Code:    core.CodeInvalidRequest,
		Details: err.Error(),
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		resp.Details = describe(errs)
	}
	return resp
}

func describe(errs validator.ValidationErrors) string {
	var details strings.Builder
	for _, err := range errs {
		if details.Len() > 0 {
			details.WriteString("; ")
		}
		switch err.Tag() {
		case "required":
			fmt.Fprintf(&details, "%s is required", err.Field())
		case "oneof":
			fmt.Fprintf(&details, "%s must be one of [%s]", err.Field(), err.Param())
		case "alphanum":
			fmt.Fprintf(&details, "%s must be alphanumeric", err.Field())
		case "max":
			if err.Type().Kind() == reflect.String {
				fmt.Fprintf(&details, "%s must be at most %s characters", err.Field(), err.Param())
			} else {
				fmt.Fprintf(&details, "%s must be at most %s", err.Field(), err.Param())
			}
		default:
			fmt.Fprintf(&details, "%s failed %s validation", err.Field(), err.Tag())
		}
	}
	return details.String()
}
