package validation

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	passwordvalidator "github.com/wagslane/go-password-validator"
)

const (
	PasswordMinLength      = 8
	PasswordMinEntropyBits = 50

	passwordSpecials = "@$!%*?&"
)

var phoneRe = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// New returns a validator that reports json field names and knows the
// "password" and "phone" tags.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})

	return v
}

// StrongPassword requires a lowercase letter, an uppercase letter, a digit and
// one of @$!%*?&, allows nothing outside that alphabet, and rejects guessable
// passwords below PasswordMinEntropyBits.
func StrongPassword(pass string) bool {
	if len(pass) < PasswordMinLength {
		return false
	}

	var lower, upper, digit, special bool

	for _, r := range pass {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}

	if !lower || !upper || !digit || !special {
		return false
	}

	return passwordvalidator.Validate(pass, PasswordMinEntropyBits) == nil
}
