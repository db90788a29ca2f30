package account

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bcrypt only looks at the first 72 bytes and x/crypto rejects longer input.
const maxPasswordBytes = 72

const passwordRules = "required,min=6,max=72"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validationError turns the first validator failure into a ValidationError.
// field overrides the reported name for single-value checks.
func validationError(err error, field string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}
	fe := verrs[0]
	if field == "" {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return invalid(field, "is required")
	case "min":
		return invalid(field, "must be at least %s characters", fe.Param())
	case "max":
		return invalid(field, "must be at most %s characters", fe.Param())
	case "email":
		return invalid(field, "must be a valid email")
	case "oneof":
		return invalid(field, "must be one of %s", strings.Join(strings.Fields(fe.Param()), ", "))
	default:
		return invalid(field, "is invalid")
	}
}

func validatePassword(field, password string) error {
	if err := validate.Var(password, passwordRules); err != nil {
		return validationError(err, field)
	}
	if len(password) > maxPasswordBytes {
		return invalid(field, "must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

func validateRole(role Role) error {
	if err := validate.Var(role, "omitempty,oneof=user admin"); err != nil {
		return validationError(err, "role")
	}
	return nil
}

func normalizeRegistration(in RegisterInput) (RegisterInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Role = Role(strings.ToLower(strings.TrimSpace(string(in.Role))))

	if err := validate.Struct(in); err != nil {
		return RegisterInput{}, validationError(err, "")
	}
	if len(in.Password) > maxPasswordBytes {
		return RegisterInput{}, invalid("password", "must be at most %d bytes", maxPasswordBytes)
	}
	if in.Role == "" {
		in.Role = RoleUser
	}
	return in, nil
}

func normalizeProfileUpdate(u ProfileUpdate) (ProfileUpdate, error) {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
	if u.Email != nil {
		email := normalizeEmail(*u.Email)
		u.Email = &email
	}
	if err := validate.Struct(u); err != nil {
		return ProfileUpdate{}, validationError(err, "")
	}
	return u, nil
}
