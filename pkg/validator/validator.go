package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"go-freshflow/internal/model"
)

type ErrorResponse struct {
	FailedField string `json:"field"`
	Tag         string `json:"tag"`
	Value       string `json:"value,omitempty"`
}

var validate = validator.New()

func init() {
	validate.RegisterValidation("uuid_required", func(fl validator.FieldLevel) bool {
		if id, ok := fl.Field().Interface().(uuid.UUID); ok {
			return id != uuid.Nil
		}
		return false
	})
	validate.RegisterValidation("tier", func(fl validator.FieldLevel) bool {
		switch v := fl.Field().Interface().(type) {
		case model.Tier:
			return v.Valid()
		case string:
			return model.Tier(v).Valid()
		}
		return false
	})
	validate.RegisterValidation("pool_reason", func(fl validator.FieldLevel) bool {
		_, ok := model.ParsePoolReason(fl.Field().String())
		return ok
	})
}

func ValidateStruct(data interface{}) []*ErrorResponse {
	var out []*ErrorResponse
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []*ErrorResponse{{FailedField: "", Tag: err.Error()}}
	}
	for _, fe := range verrs {
		out = append(out, &ErrorResponse{
			FailedField: fe.StructNamespace(),
			Tag:         fe.Tag(),
			Value:       fe.Param(),
		})
	}
	return out
}

// Error wraps a failed validation so callers can match it with errors.As.
type Error struct {
	Fields []*ErrorResponse
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("field '%s' failed on tag '%s'", f.FailedField, f.Tag)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Check validates data and returns *Error, or nil when valid.
func Check(data interface{}) error {
	if errs := ValidateStruct(data); len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}
