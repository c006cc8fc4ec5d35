package handler

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bank-reconciliation-backend/internal/models"
)

// RegisterValidators adds the `entitykind` tag to gin's binding validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("binding validator engine is %T, not *validator.Validate", binding.Validator.Engine())
	}
	return v.RegisterValidation("entitykind", func(fl validator.FieldLevel) bool {
		_, err := models.ParseEntityKind(fl.Field().String())
		return err == nil
	})
}
