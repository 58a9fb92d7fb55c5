package validate

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type CustomValidator struct {
	validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("maxyear", validateMaxYear) //nolint:errcheck
	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// validateMaxYear rejects years later than next calendar year.
func validateMaxYear(fl validator.FieldLevel) bool {
	return fl.Field().Int() <= int64(time.Now().Year()+1)
}
