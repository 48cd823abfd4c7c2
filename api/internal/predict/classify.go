package predict

import (
	"encoding/json"
	"fmt"
	"math"

	"agrismart-bot/api/internal/task"
)

type DirectiveKind string

const (
	ShowCrop       DirectiveKind = "crop"
	ShowFertilizer DirectiveKind = "fertilizer"
	ShowDisease    DirectiveKind = "disease"
	ShowError      DirectiveKind = "error"
)

// Directive tells the presentation layer which result view to produce.
type Directive struct {
	Kind       DirectiveKind
	Name       string
	Confidence *float64
	Message    string
}

// Classifier maps a result payload to a directive. hint is the task the payload
// was requested for; it only refines the fallback message.
type Classifier interface {
	Classify(data map[string]any, hint task.Kind) Directive
}

// ShapeClassifier discriminates by which result key is present.
type ShapeClassifier struct{}

func (ShapeClassifier) Classify(data map[string]any, hint task.Kind) Directive {
	if name, ok := stringKey(data, "crop"); ok {
		return Directive{Kind: ShowCrop, Name: name, Confidence: confidence(data)}
	}
	if name, ok := stringKey(data, "fertilizer"); ok {
		return Directive{Kind: ShowFertilizer, Name: name}
	}
	if name, ok := stringKey(data, "disease"); ok {
		return Directive{Kind: ShowDisease, Name: name, Confidence: confidence(data)}
	}

	msg := ErrUnrecognizedResult.Error()
	if spec, err := task.Lookup(hint); err == nil {
		msg = fmt.Sprintf("%s: expected %q in %s response", msg, spec.ResultKey, spec.Title)
	}
	return Directive{Kind: ShowError, Message: msg}
}

// ErrorDirective renders a failed submission.
func ErrorDirective(msg string) Directive {
	return Directive{Kind: ShowError, Message: msg}
}

func stringKey(data map[string]any, key string) (string, bool) {
	v, ok := data[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, s != ""
	}
	return fmt.Sprint(v), true
}

// confidence returns the fraction when present and inside [0,1].
func confidence(data map[string]any) *float64 {
	var c float64
	switch v := data["confidence"].(type) {
	case float64:
		c = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		c = f
	default:
		return nil
	}
	if math.IsNaN(c) || c < 0 || c > 1 {
		return nil
	}
	return &c
}
