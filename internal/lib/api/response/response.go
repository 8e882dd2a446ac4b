package response

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func OK(msg string) Response {
	return Response{
		Success: true,
		Message: msg,
	}
}

func Data(msg string, data any) Response {
	return Response{
		Success: true,
		Message: msg,
		Data:    data,
	}
}

func Error(msg string) Response {
	return Response{
		Success: false,
		Message: msg,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	fields := make([]FieldError, 0, len(errs))

	for _, err := range errs {
		fields = append(fields, FieldError{
			Field:   err.Field(),
			Message: fieldMessage(err),
		})
	}

	return Response{
		Success: false,
		Message: "Validation error",
		Errors:  fields,
	}
}

func fieldMessage(err validator.FieldError) string {
	switch err.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	case "password":
		return "Password must contain uppercase, lowercase, number, and special character and be hard to guess"
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", err.Field())
	default:
		return fmt.Sprintf("%s is not valid", err.Field())
	}
}
