package task

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects the form schema and the endpoint of one prediction workflow.
type Kind string

const (
	CropRecommendation       Kind = "crop"
	FertilizerRecommendation Kind = "fertilizer"
	DiseaseDetection         Kind = "disease"
)

var ErrUnknownTask = errors.New("unknown task")

type FieldType string

const (
	FieldNumeric     FieldType = "numeric"
	FieldCategorical FieldType = "categorical"
	FieldFile        FieldType = "file"
)

type Encoding string

const (
	EncodingJSON      Encoding = "json"
	EncodingMultipart Encoding = "multipart"
)

// Field describes one input of a task. Range is advisory only and never enforced.
type Field struct {
	Name    string
	Label   string
	Type    FieldType
	Range   string
	Options []string
}

// HasOption reports whether v is one of the field's fixed options.
func (f Field) HasOption(v string) bool {
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}

// MatchOption resolves v to the canonical option ignoring case.
func (f Field) MatchOption(v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, o := range f.Options {
		if strings.EqualFold(o, v) {
			return o, true
		}
	}
	return "", false
}

type Spec struct {
	Kind     Kind
	Title    string
	Endpoint string
	Encoding Encoding
	// ResultKey is the data key that identifies this task's result shape.
	ResultKey string
	Fields    []Field
}

// Field looks a field up by its wire name.
func (s Spec) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FileFieldName is the multipart field carrying the image bytes.
const FileFieldName = "file"

var SoilTypes = []string{"Sandy", "Loamy", "Clayey", "Black", "Red"}
var CropTypes = []string{"Rice", "Wheat", "Maize", "Sugarcane", "Cotton"}

var registry = map[Kind]Spec{
	CropRecommendation: {
		Kind:      CropRecommendation,
		Title:     "Crop Recommendation",
		Endpoint:  "/predict/crop",
		Encoding:  EncodingJSON,
		ResultKey: "crop",
		Fields: []Field{
			{Name: "N", Label: "Nitrogen (N)", Type: FieldNumeric, Range: "0-140"},
			{Name: "P", Label: "Phosphorus (P)", Type: FieldNumeric, Range: "0-140"},
			{Name: "K", Label: "Potassium (K)", Type: FieldNumeric, Range: "0-200"},
			{Name: "temperature", Label: "Temperature (°C)", Type: FieldNumeric, Range: "20-35"},
			{Name: "humidity", Label: "Humidity (%)", Type: FieldNumeric, Range: "20-95"},
			{Name: "ph", Label: "pH Level", Type: FieldNumeric, Range: "4.0-8.5"},
			{Name: "rainfall", Label: "Rainfall (mm)", Type: FieldNumeric, Range: "10-300"},
		},
	},
	FertilizerRecommendation: {
		Kind:      FertilizerRecommendation,
		Title:     "Fertilizer Recommendation",
		Endpoint:  "/predict/fertilizer",
		Encoding:  EncodingJSON,
		ResultKey: "fertilizer",
		Fields: []Field{
			{Name: "temperature", Label: "Temperature (°C)", Type: FieldNumeric, Range: "20-35"},
			{Name: "humidity", Label: "Humidity (%)", Type: FieldNumeric, Range: "20-95"},
			{Name: "moisture", Label: "Moisture (%)", Type: FieldNumeric, Range: "10-50"},
			{Name: "soil_type", Label: "Soil Type", Type: FieldCategorical, Options: SoilTypes},
			{Name: "crop_type", Label: "Crop Type", Type: FieldCategorical, Options: CropTypes},
			{Name: "N", Label: "Current N", Type: FieldNumeric, Range: "0-140"},
			{Name: "P", Label: "Current P", Type: FieldNumeric, Range: "0-140"},
			{Name: "K", Label: "Current K", Type: FieldNumeric, Range: "0-200"},
		},
	},
	DiseaseDetection: {
		Kind:      DiseaseDetection,
		Title:     "Disease Detection",
		Endpoint:  "/predict/disease",
		Encoding:  EncodingMultipart,
		ResultKey: "disease",
		Fields: []Field{
			{Name: FileFieldName, Label: "Plant image", Type: FieldFile},
		},
	},
}

// Kinds lists the tasks in display order.
func Kinds() []Kind {
	return []Kind{CropRecommendation, FertilizerRecommendation, DiseaseDetection}
}

// Lookup returns the static description of k.
func Lookup(k Kind) (Spec, error) {
	s, ok := registry[k]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownTask, k)
	}
	return s, nil
}

// MustLookup is Lookup for kinds known at compile time.
func MustLookup(k Kind) Spec {
	s, err := Lookup(k)
	if err != nil {
		panic(err)
	}
	return s
}

// Parse maps a user-facing name ("crop", "/fertilizer", "Disease") to a Kind.
func Parse(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "/")))
	if _, ok := registry[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTask, s)
	}
	return k, nil
}

// ByResultKey returns the task whose result shape carries key.
func ByResultKey(key string) (Kind, bool) {
	for _, k := range Kinds() {
		if registry[k].ResultKey == key {
			return k, true
		}
	}
	return "", false
}

// LookupField finds field name of task k; false for unknown tasks or fields.
func LookupField(k Kind, name string) (Field, bool) {
	s, ok := registry[k]
	if !ok {
		return Field{}, false
	}
	return s.Field(name)
}
