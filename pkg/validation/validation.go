package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Errors errores por campo, con el nombre JSON del campo como clave
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e[k])
	}
	return "datos inválidos: " + strings.Join(parts, "; ")
}

// Validator envuelve validator/v10 y traduce sus errores a mensajes
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct valida s. Devuelve Errors si algún campo no cumple sus reglas.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe)
		if _, seen := out[field]; !seen {
			out[field] = message(fe)
		}
	}
	return out
}

// fieldPath quita el nombre del struct raíz: "LoginRequest.email" -> "email"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Este campo es obligatorio"
	case "email":
		return "Ingresa un correo válido"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Debe tener al menos %s caracteres", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Selecciona al menos %s", fe.Param())
		}
		return fmt.Sprintf("Debe ser como mínimo %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Debe tener como máximo %s caracteres", fe.Param())
		}
		return fmt.Sprintf("Debe ser como máximo %s", fe.Param())
	case "len":
		return fmt.Sprintf("Debe tener exactamente %s caracteres", fe.Param())
	case "numeric":
		return "Solo se permiten números"
	case "eqfield":
		return "Las contraseñas no coinciden"
	case "oneof":
		return fmt.Sprintf("Debe ser uno de: %s", fe.Param())
	case "url":
		return "Ingresa una URL válida"
	default:
		return fmt.Sprintf("Valor inválido (%s)", fe.Tag())
	}
}
