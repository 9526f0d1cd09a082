package handler

import (
	"errors"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the custom binding tags used by the request types to gin's
// validator. It is safe to call more than once.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return v.RegisterValidation("relationship_goal", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseRelationshipType(fl.Field().String())
		return err == nil
	})
}
