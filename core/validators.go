package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

var (
	// Translator is the translator registered by InitValidators.
	Translator ut.Translator

	// custom validation tags & texts
	schoolCodeTag   = "schoolcode"
	schoolCodeText  = "school code may only contain letters, digits, dashes and underscores (max 32)"
	schoolCodeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

	payMethodTag  = "paymethod"
	payMethodText = "payment method must be one of: cheque, deposit"

	gradeTag  = "grade"
	gradeText = "grade must be one of: IV, V, VI, VII, VIII"

	genderTag  = "gender"
	genderText = "gender must be one of: M, F"

	moneyTag   = "money"
	moneyText  = "amount must be a decimal number with at most 2 decimal places"
	moneyRegex = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)

	requiredTag  = "required"
	requiredText = "this field is required"

	errInvalidInput = errors.New("invalid input")
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	Translator = translator
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(schoolCodeTag, schoolCodeValidation)
	RegisterCustomTranslation(validate, translator, schoolCodeTag, schoolCodeText)

	_ = validate.RegisterValidation(payMethodTag, payMethodValidation)
	RegisterCustomTranslation(validate, translator, payMethodTag, payMethodText)

	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	RegisterCustomTranslation(validate, translator, gradeTag, gradeText)

	_ = validate.RegisterValidation(genderTag, genderValidation)
	RegisterCustomTranslation(validate, translator, genderTag, genderText)

	_ = validate.RegisterValidation(moneyTag, moneyValidation)
	RegisterCustomTranslation(validate, translator, moneyTag, moneyText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// TranslateValidationErrors flattens validator errors into field errors keyed by their JSON path.
func TranslateValidationErrors(err error) []FieldError {
	vErrs, ok := errors.Cause(err).(validator.ValidationErrors)
	if !ok {
		return nil
	}
	flds := make([]FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		msg := vErr.Error()
		if Translator != nil {
			msg = vErr.Translate(Translator)
		}
		flds = append(flds, FieldError{Path: vErr.Field(), Message: msg})
	}
	return flds
}

// CheckStruct validates obj and merges the violations with the extra field errors
// computed by the caller. It returns nil or a *ValidationError.
func CheckStruct(validate *validator.Validate, obj interface{}, extra ...FieldError) error {
	var flds []FieldError
	if err := validate.Struct(obj); err != nil {
		if _, ok := err.(validator.ValidationErrors); !ok {
			return errors.Wrap(err, "validating struct")
		}
		flds = TranslateValidationErrors(err)
	}
	flds = append(flds, extra...)
	if len(flds) == 0 {
		return nil
	}
	return NewValidationError(errInvalidInput, flds...)
}

// Custom Global Validators

func schoolCodeValidation(fl validator.FieldLevel) bool {
	return schoolCodeRegex.MatchString(fl.Field().String())
}

func payMethodValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "cheque", "deposit":
		return true
	}
	return false
}

func gradeValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "IV", "V", "VI", "VII", "VIII":
		return true
	}
	return false
}

func genderValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "M", "F":
		return true
	}
	return false
}

func moneyValidation(fl validator.FieldLevel) bool {
	return moneyRegex.MatchString(fl.Field().String())
}
