package controllers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/lumbarong/lumbarong-api/models"
)

// RegisterValidators adds the marketplace binding tags to gin's validator and
// makes field errors report JSON names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		return models.IsValidOrderStatus(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return models.IsValidPaymentMethod(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("return_status", func(fl validator.FieldLevel) bool {
		status := fl.Field().String()
		return status == models.ReturnApproved || status == models.ReturnRejected
	})
}

// validationMessage turns the first binding failure into a readable sentence
func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return "Invalid request data"
	}

	fe := fieldErrors[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "order_status":
		return field + " must be a valid order status"
	case "payment_method":
		return fmt.Sprintf("%s must be %q or %q", field, models.PaymentGCash, models.PaymentCashOnDelivery)
	case "return_status":
		return fmt.Sprintf("%s must be %q or %q", field, models.ReturnApproved, models.ReturnRejected)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}
