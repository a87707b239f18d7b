// Package schema enforces the closed wire shapes of planned and executed workouts.
//
// Decoding is two-pass: the raw JSON is first walked against the Go types' json tags
// (unknown keys, missing required keys, wrong JSON kinds), then the typed value is
// checked with validator struct tags (ranges, enums, version). All failures are
// collected into one *Violation sorted by document path.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"alcyxob/climb-sim/internal/domain"

	"github.com/go-playground/validator/v10"
)

// ErrSchemaViolation is matched by every *Violation via errors.Is.
var ErrSchemaViolation = errors.New("schema violation")

// FieldError is one violated constraint at one document path.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Violation lists every constraint a document failed.
type Violation struct {
	Document string       `json:"document"`
	Errors   []FieldError `json:"errors"`
}

func (v *Violation) Error() string {
	parts := make([]string, len(v.Errors))
	for i, fe := range v.Errors {
		parts[i] = fe.Path + ": " + fe.Message
	}
	return fmt.Sprintf("%s: %s: %s", ErrSchemaViolation, v.Document, strings.Join(parts, "; "))
}

func (v *Violation) Is(target error) bool {
	return target == ErrSchemaViolation
}

const (
	docPlanned  = "planned_workout"
	docExecuted = "executed_workout"
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

// DecodePlanned parses and validates a planned workout document.
func DecodePlanned(raw []byte) (*domain.PlannedWorkout, error) {
	var p domain.PlannedWorkout
	if err := decode(raw, docPlanned, &p); err != nil {
		return nil, err
	}
	dropEmptyIntensity(p.Blocks)
	return &p, nil
}

// DecodeExecuted parses and validates an executed workout document.
func DecodeExecuted(raw []byte) (*domain.ExecutedWorkout, error) {
	var e domain.ExecutedWorkout
	if err := decode(raw, docExecuted, &e); err != nil {
		return nil, err
	}
	dropEmptyIntensity(e.Blocks)
	return &e, nil
}

// dropEmptyIntensity clears descriptors that decoded with no field set, so an
// intensity of {} or {"grade_band":""} reads the same as an absent one.
func dropEmptyIntensity(blocks []domain.Block) {
	for i := range blocks {
		for j := range blocks[i].Items {
			it := &blocks[i].Items[j]
			if it.Intensity != nil && *it.Intensity == (domain.Intensity{}) {
				it.Intensity = nil
			}
		}
	}
}

// ValidatePlanned checks a planned workout built in code.
func ValidatePlanned(p *domain.PlannedWorkout) error {
	if p == nil {
		return &Violation{Document: docPlanned, Errors: []FieldError{{Path: "$", Message: "document is missing"}}}
	}
	return finish(docPlanned, structErrors(p))
}

// ValidateExecuted checks an executed workout built in code.
func ValidateExecuted(e *domain.ExecutedWorkout) error {
	if e == nil {
		return &Violation{Document: docExecuted, Errors: []FieldError{{Path: "$", Message: "document is missing"}}}
	}
	return finish(docExecuted, structErrors(e))
}

func decode(raw []byte, doc string, out any) error {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return finish(doc, []FieldError{{Path: "$", Message: "malformed JSON: " + err.Error()}})
	}
	errs := checkShape(generic, reflect.TypeOf(out).Elem(), "")
	if err := json.Unmarshal(raw, out); err != nil {
		// Kind mismatches are already reported by the shape walk.
		if len(errs) == 0 {
			errs = append(errs, FieldError{Path: "$", Message: err.Error()})
		}
		return finish(doc, errs)
	}
	seen := make(map[string]bool, len(errs))
	for _, fe := range errs {
		seen[fe.Path] = true
	}
	for _, fe := range structErrors(out) {
		if !seen[fe.Path] {
			errs = append(errs, fe)
		}
	}
	return finish(doc, errs)
}

func finish(doc string, errs []FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Path != errs[j].Path {
			return pathLess(errs[i].Path, errs[j].Path)
		}
		return errs[i].Message < errs[j].Message
	})
	return &Violation{Document: doc, Errors: errs}
}

func structErrors(v any) []FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Path: "$", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Path: trimRoot(fe.Namespace()), Message: message(fe)})
	}
	return out
}

// trimRoot drops the Go type name validator puts in front of every namespace.
func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	numeric := false
	switch fe.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64:
		numeric = true
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if numeric {
			return "must be >= " + fe.Param()
		}
		return "length must be at least " + fe.Param()
	case "max":
		if numeric {
			return "must be <= " + fe.Param()
		}
		return "length must be at most " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "eq":
		return fmt.Sprintf("unsupported value %v, expected %s", fe.Value(), fe.Param())
	case "len":
		return "length must be " + fe.Param()
	case "hexadecimal":
		return "must be hexadecimal"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
