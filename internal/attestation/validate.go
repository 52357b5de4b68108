package attestation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/a3tai/attestation-stamper/internal/layout"
	"github.com/go-playground/validator/v10"
)

// MessageAllFieldsRequired is the only validation message shown to users
const MessageAllFieldsRequired = "Tous les champs sont obligatoires !"

// ErrAllFieldsRequired matches every validation failure with errors.Is
var ErrAllFieldsRequired = errors.New(MessageAllFieldsRequired)

// ValidationError reports a blocked submission. Error() is always the
// generic message; Fields is kept for logs and never shown to users.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return MessageAllFieldsRequired
}

// Is makes errors.Is(err, ErrAllFieldsRequired) true
func (e *ValidationError) Is(target error) bool {
	return target == ErrAllFieldsRequired
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so logged field names match the form inputs
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	err := v.RegisterValidation("birthday", func(fl validator.FieldLevel) bool {
		_, err := ParseBirthDay(fl.Field().String())
		return err == nil
	})
	if err != nil {
		panic(fmt.Sprintf("failed to register birthday validation: %v", err))
	}

	return v
}

// Validate checks rec against the schema and the layout-specific rules:
// birthTown is only required when the layout prints it, and the purpose must
// be one the layout offers.
func Validate(ctx context.Context, l *layout.Layout, rec Record) error {
	var failed []string

	if err := validate.StructCtx(ctx, rec); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			failed = append(failed, fe.Field())
		}
	}

	if l.UsesField(layout.FieldBirthTown) {
		if err := validate.VarCtx(ctx, rec.BirthTown, "required"); err != nil {
			failed = append(failed, string(layout.FieldBirthTown))
		}
	}

	if rec.Purpose != "" && !l.HasPurpose(rec.Purpose) {
		failed = append(failed, "purpose")
	}

	if len(failed) > 0 {
		return &ValidationError{Fields: failed}
	}
	return nil
}
