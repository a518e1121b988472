package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	sgerrors "github.com/stepguard/stepguard/pkg/shared/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			return yamlName(field.Tag.Get("yaml"), field.Name)
		})
	})
	return validate
}

// Validate checks a decoded document at the record boundary: field sizes,
// at least one step, unique step IDs and step references that resolve.
func Validate(doc *Document, source string) error {
	if doc == nil {
		return sgerrors.NewInvalidRecordError(source, "document is empty")
	}

	var problems []string
	if err := recordValidator().Struct(doc); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate workflow %q: %w", source, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	ids := make(map[string]int, len(doc.Steps))
	for i, s := range doc.Steps {
		id := strings.TrimSpace(string(s.StepID))
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		if first, ok := ids[id]; ok {
			problems = append(problems, fmt.Sprintf("steps[%d].step_id: %q duplicates steps[%d]", i, id, first))
			continue
		}
		ids[id] = i
	}
	for i, s := range doc.Steps {
		if next := strings.TrimSpace(string(s.NextStep)); next != "" {
			if _, ok := ids[next]; !ok {
				problems = append(problems, fmt.Sprintf("steps[%d].next_step: unknown step %q", i, next))
			}
		}
		for j, dep := range s.Dependencies {
			if _, ok := ids[strings.TrimSpace(string(dep))]; !ok {
				problems = append(problems, fmt.Sprintf("steps[%d].dependencies[%d]: unknown step %q", i, j, dep))
			}
		}
	}

	if len(problems) > 0 {
		return sgerrors.NewInvalidRecordError(source, problems...)
	}
	return nil
}

// describe renders a validation failure using the document's key names.
func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: is required", path)
	case "min":
		return fmt.Sprintf("%s: needs at least %s entries", path, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s: has more than %s entries", path, fe.Param())
		}
		return fmt.Sprintf("%s: is longer than %s characters", path, fe.Param())
	default:
		return fmt.Sprintf("%s: failed %q check", path, fe.Tag())
	}
}

func yamlName(tag, fallback string) string {
	name := strings.Split(tag, ",")[0]
	if name == "" || name == "-" {
		return fallback
	}
	return name
}
