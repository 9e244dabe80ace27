package transport

import (
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/platform/validator"

	govalidator "github.com/go-playground/validator/v10"
)

// RegisterValidations adds the pipeline_type and pipeline_status tags.
func RegisterValidations(val *validator.Validator) error {
	if err := val.RegisterValidation("pipeline_type", func(fl govalidator.FieldLevel) bool {
		_, ok := domain.ParsePipelineType(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	return val.RegisterValidation("pipeline_status", func(fl govalidator.FieldLevel) bool {
		return domain.IsKnownStatus(domain.Status(fl.Field().String()))
	})
}
