// Package output turns raw model text into one of the two result shapes the
// interview accepts: an in-progress turn (ASK or REJECT) or a terminal
// COMPLETE payload carrying the final requirements.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"reqgather/internal/intent"
	"reqgather/internal/registry"
)

type Status string

const (
	StatusAsk      Status = "ASK"
	StatusReject   Status = "REJECT"
	StatusComplete Status = "COMPLETE"
)

// ErrMalformed is matched by every *ParseError.
var ErrMalformed = errors.New("malformed model output")

// ParseError carries the raw text that failed so callers can log it.
type ParseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformed, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformed, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrMalformed }
func (e *ParseError) Unwrap() error        { return e.Err }

// Result is a validated model answer. Turn fields are set for ASK and
// REJECT; Requirements is set for COMPLETE.
type Result struct {
	Status                   Status
	Phase                    intent.Phase
	Question                 string
	Registry                 registry.Registry
	Pending                  *intent.Pending
	AdditionalQuestionsAsked int
	Requirements             map[string]any
}

func (r Result) Terminal() bool { return r.Status == StatusComplete }

type wire struct {
	Status                   string          `json:"status"`
	Phase                    string          `json:"phase"`
	Question                 string          `json:"question"`
	UpdatedRegistry          map[string]any  `json:"updated_registry"`
	UpdatedContext           map[string]any  `json:"updated_context"`
	PendingIntent            *intent.Pending `json:"pending_intent"`
	AdditionalQuestionsAsked *int            `json:"additional_questions_asked"`
	Requirements             map[string]any  `json:"requirements"`
}

type turnShape struct {
	Phase      string         `json:"phase" validate:"required,turnphase"`
	Question   string         `json:"question" validate:"required"`
	Registry   map[string]any `json:"updated_registry" validate:"required"`
	Additional int            `json:"additional_questions_asked" validate:"gte=0"`
}

type askShape struct {
	turnShape
	Pending *intent.Pending `json:"pending_intent" validate:"required"`
}

type finalShape struct {
	Phase        string         `json:"phase" validate:"required,eq=COMPLETE"`
	Requirements map[string]any `json:"requirements" validate:"required"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("turnphase", func(fl validator.FieldLevel) bool {
		p, ok := intent.ParsePhase(fl.Field().String())
		return ok && p != intent.PhaseComplete
	})
}

// Parse cleans raw and validates it against the shape its status selects.
// It never coerces a missing field into a default, except
// additional_questions_asked which defaults to 0.
func Parse(raw string) (Result, error) {
	cleaned := Clean(raw)
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	var w wire
	if err := dec.Decode(&w); err != nil {
		return Result{}, &ParseError{Raw: raw, Reason: "invalid json", Err: err}
	}

	status := Status(strings.ToUpper(strings.TrimSpace(w.Status)))
	switch status {
	case StatusAsk, StatusReject:
		return parseTurn(raw, status, w)
	case StatusComplete:
		return parseFinal(raw, w)
	case "":
		return Result{}, &ParseError{Raw: raw, Reason: "missing status"}
	default:
		return Result{}, &ParseError{Raw: raw, Reason: fmt.Sprintf("unknown status %q", w.Status)}
	}
}

func parseTurn(raw string, status Status, w wire) (Result, error) {
	reg := w.UpdatedRegistry
	if reg == nil {
		reg = w.UpdatedContext
	}
	shape := turnShape{
		Phase:    strings.TrimSpace(w.Phase),
		Question: strings.TrimSpace(w.Question),
		Registry: reg,
	}
	if w.AdditionalQuestionsAsked != nil {
		shape.Additional = *w.AdditionalQuestionsAsked
	}
	pending := w.PendingIntent
	if pending != nil && pending.Type == "" && status == StatusReject {
		pending = nil
	}

	var err error
	if status == StatusAsk {
		err = validate.Struct(askShape{turnShape: shape, Pending: pending})
	} else {
		err = validate.Struct(shape)
		if err == nil && pending != nil {
			err = validate.Struct(pending)
		}
	}
	if err != nil {
		return Result{}, &ParseError{Raw: raw, Reason: describe(status, err), Err: err}
	}

	phase, _ := intent.ParsePhase(shape.Phase)
	return Result{
		Status:                   status,
		Phase:                    phase,
		Question:                 shape.Question,
		Registry:                 registry.FromMap(reg),
		Pending:                  pending,
		AdditionalQuestionsAsked: shape.Additional,
	}, nil
}

func parseFinal(raw string, w wire) (Result, error) {
	shape := finalShape{
		Phase:        strings.ToUpper(strings.TrimSpace(w.Phase)),
		Requirements: w.Requirements,
	}
	if err := validate.Struct(shape); err != nil {
		return Result{}, &ParseError{Raw: raw, Reason: describe(StatusComplete, err), Err: err}
	}
	return Result{
		Status:       StatusComplete,
		Phase:        intent.PhaseComplete,
		Requirements: shape.Requirements,
	}, nil
}

func describe(status Status, err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Sprintf("invalid %s payload", status)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Sprintf("invalid %s payload: %s", status, strings.Join(parts, "; "))
}
