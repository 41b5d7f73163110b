package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nvandessel/competence/internal/models"
)

// domainValidate checks the struct tags of a DomainDescription. Field names
// in errors follow the yaml keys.
var domainValidate *validator.Validate

func init() {
	domainValidate = validator.New()
	domainValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// Validate checks a parsed description. Tag validation runs first; semantic
// checks (reference integrity, acyclicity, a complete update-level table)
// happen when the description is compiled.
func Validate(d *models.DomainDescription) error {
	if d == nil {
		return &models.ConfigError{Field: "domain", Reason: "no domain description"}
	}
	if len(d.UpdateLevels) == 0 {
		return &models.ConfigError{Field: "update_levels", Reason: "update-level table is missing"}
	}
	err := domainValidate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &models.ConfigError{Field: "domain", Reason: err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return &models.ConfigError{
		Field:  fieldPath(verrs[0]),
		Reason: strings.Join(msgs, "; "),
	}
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	path := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", path, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", path, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", path, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", path, fe.Tag())
	}
}
