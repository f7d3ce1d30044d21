package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

func OK() Response {
	return Response{
		Status: StatusOK,
	}
}

func OKMessage(msg string) Response {
	return Response{
		Status:  StatusOK,
		Message: msg,
	}
}

func Error(msg string) Response {
	return Response{
		Status:  StatusError,
		Message: msg,
	}
}

// ValidationError joins one message per failed field.
func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		errMsgs = append(errMsgs, fieldMessage(err))
	}

	return Response{
		Status:  StatusError,
		Message: "Validation failed: " + strings.Join(errMsgs, ", "),
	}
}

func fieldMessage(err validator.FieldError) string {
	field := err.Field()

	switch err.ActualTag() {
	case "required":
		return fmt.Sprintf("field %s is a required field", field)
	case "email":
		return fmt.Sprintf("field %s is not a valid email", field)
	case "max":
		if err.Kind().String() == "string" {
			return fmt.Sprintf("field %s must not exceed %s characters", field, err.Param())
		}
		return fmt.Sprintf("field %s must not exceed %s", field, err.Param())
	case "min":
		return fmt.Sprintf("field %s must be at least %s", field, err.Param())
	case "len":
		return fmt.Sprintf("field %s must be exactly %s characters", field, err.Param())
	case "numeric":
		return fmt.Sprintf("field %s must contain only numbers", field)
	case "oneof":
		return fmt.Sprintf("field %s must be one of: %s", field, strings.ReplaceAll(err.Param(), " ", ", "))
	case "duedate":
		return fmt.Sprintf("field %s must be a valid date", field)
	case "datetime":
		return fmt.Sprintf("field %s must be a date in YYYY-MM-DD format", field)
	default:
		return fmt.Sprintf("field %s is not valid", field)
	}
}
