package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestStrongPassword(t *testing.T) {
	cases := map[string]bool{
		"Str0ng!Pass":  true,
		"Campus@2026x": true,
		"short1!A":     false,
		"alllower1!":   false,
		"ALLUPPER1!":   false,
		"NoDigits!!a":  false,
		"NoSpecial12a": false,
		"Bad#Char12a":  false,
		"":             false,
	}

	for pass, want := range cases {
		if got := StrongPassword(pass); got != want {
			t.Fatalf("StrongPassword(%q) = %v, want %v", pass, got, want)
		}
	}
}

type sample struct {
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,phone"`
	Password string `json:"password" validate:"required,password"`
}

func TestValidatorReportsJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Struct(sample{Email: "nope", Phone: "abc", Password: "weak"})
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validator.ValidationErrors, got %T", err)
	}

	fields := map[string]string{}
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}

	want := map[string]string{"email": "email", "phone": "phone", "password": "password"}
	for field, tag := range want {
		if fields[field] != tag {
			t.Fatalf("expected %s to fail on %s, got %q", field, tag, fields[field])
		}
	}
}

func TestValidatorAcceptsValidInput(t *testing.T) {
	v := New()

	if err := v.Struct(sample{Email: "a@campus.edu", Phone: "+919876543210", Password: "Str0ng!Pass"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
