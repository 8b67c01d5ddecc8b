package api

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"invoice-reconciliation-service/internal/models"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerValidators installs the custom binding tags used by the models
func registerValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
			return
		}
		registerErr = v.RegisterValidation("payment_status", validatePaymentStatus)
	})
	return registerErr
}

func validatePaymentStatus(fl validator.FieldLevel) bool {
	return models.PaymentStatus(fl.Field().String()).IsValid()
}

// describeBindError renders a binding failure as a short field list
func describeBindError(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return "body"
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := strings.TrimPrefix(fe.Namespace(), "Invoice.")
		if fe.Tag() == "payment_status" {
			fields = append(fields, fmt.Sprintf("%s must be one of Paid, Unpaid, Partial", name))
			continue
		}
		fields = append(fields, fmt.Sprintf("%s failed %s", name, fe.Tag()))
	}
	return strings.Join(fields, "; ")
}
