package app

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"live-quiz-service/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func normalizeQuestions(in []domain.QuestionInput) []domain.QuestionInput {
	out := make([]domain.QuestionInput, len(in))
	for i, q := range in {
		opts := make([]string, len(q.Options))
		for j, o := range q.Options {
			opts[j] = strings.TrimSpace(o)
		}
		out[i] = domain.QuestionInput{
			Text:          strings.TrimSpace(q.Text),
			Options:       opts,
			CorrectOption: q.CorrectOption,
		}
	}
	return out
}

// validateInput checks struct tags and then the correct-option range of every question.
func validateInput(in any, questions []domain.QuestionInput) error {
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}
	for i, q := range questions {
		if q.CorrectOption > len(q.Options) {
			return domain.Validationf("questions[%d]: correct answer %d is out of range (1..%d)", i, q.CorrectOption, len(q.Options))
		}
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.Validationf("%v", err)
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return domain.Validationf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return domain.Validationf("%s must have at least %s item(s)", field, fe.Param())
		}
		return domain.Validationf("%s must be at least %s", field, fe.Param())
	default:
		return domain.Validationf("%s failed %s validation", field, fe.Tag())
	}
}
