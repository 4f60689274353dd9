package core

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// IdentityLen is the length of every identity number (DNI).
const IdentityLen = 8

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags & texts
	identityTag   = "identity"
	identityText  = fmt.Sprintf("must contain exactly %d digits", IdentityLen)
	identityRegex = regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d}$`, IdentityLen))

	requiredTag  = "required"
	requiredText = "this field is required"
)

// Instantiate the validator for use.
func init() {
	Validate = validator.New()

	// Register the english error messages for validation errors.
	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = Validate.RegisterValidation(identityTag, identityValidation)
	RegisterCustomTranslation(identityTag, identityText)

	RegisterCustomTranslation(requiredTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = Validate.RegisterTranslation(
		tag, Translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// ValidateStruct validates `s` and returns a *ValidationError listing every failing field.
func ValidateStruct(s interface{}) error {
	if err := Validate.Struct(s); err != nil {
		return translateValidationErrors(err)
	}
	return nil
}

// Custom Global Validators

// identityValidation only allows 8 digit identity numbers.
func identityValidation(fl validator.FieldLevel) bool {
	return identityRegex.MatchString(fl.Field().String())
}
