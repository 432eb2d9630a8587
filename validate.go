package userd

import (
	"errors"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// emailRE is the ASCII local@domain.tld shape the service accepts.
var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
			return emailRE.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// ValidEmail reports whether s has the local@domain.tld shape.
func ValidEmail(s string) bool { return emailRE.MatchString(s) }

// ValidateUser checks a user submitted for creation.
func ValidateUser(u User) error {
	return translate(validatorInstance().Struct(u))
}

// ValidatePartial checks an update payload. An empty payload is rejected.
func ValidatePartial(p PartialUser) error {
	if p.Mask().Empty() {
		return Validation("Update must set at least one of name, email")
	}
	return translate(validatorInstance().Struct(p))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return Validation("Invalid input: %v", err)
	}
	// first failure wins; name is declared before email
	fe := verrs[0]
	switch fe.Tag() {
	case "notblank":
		return Validation("Name cannot be blank")
	case "emailshape":
		return Validation("Invalid email format")
	default:
		return Validation("Invalid input: field %s failed %s", fe.Field(), fe.Tag())
	}
}
