package predict

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"

	"agrismart-bot/api/internal/form"
	"agrismart-bot/api/internal/task"
	"agrismart-bot/api/internal/util"
)

// Request is a serialized submission ready for the transport.
type Request struct {
	Kind        task.Kind
	Endpoint    string
	ContentType string
	Body        []byte
}

// Build validates snap against the registry entry of k and serializes it.
// It is pure: no I/O happens here.
func Build(k task.Kind, snap form.Snapshot) (Request, error) {
	spec, err := task.Lookup(k)
	if err != nil {
		return Request{}, err
	}
	switch spec.Encoding {
	case task.EncodingJSON:
		return buildJSON(spec, snap)
	case task.EncodingMultipart:
		return buildMultipart(spec, snap)
	default:
		return Request{}, fmt.Errorf("unsupported encoding %q for %s", spec.Encoding, k)
	}
}

func buildJSON(spec task.Spec, snap form.Snapshot) (Request, error) {
	payload := make(map[string]any, len(spec.Fields))
	for _, f := range spec.Fields {
		raw := strings.TrimSpace(snap.Get(f.Name))
		switch f.Type {
		case task.FieldNumeric:
			v, err := parseNumber(raw)
			if err != nil {
				return Request{}, &ValidationError{Reason: NotANumber, Field: f.Name, Label: f.Label}
			}
			payload[f.Name] = v
		case task.FieldCategorical:
			if raw == "" {
				return Request{}, &ValidationError{Reason: MissingSelection, Field: f.Name, Label: f.Label}
			}
			if !f.HasOption(raw) {
				return Request{}, &ValidationError{Reason: InvalidSelection, Field: f.Name, Label: f.Label, Options: f.Options}
			}
			payload[f.Name] = raw
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("marshal %s request: %w", spec.Kind, err)
	}
	return Request{
		Kind:        spec.Kind,
		Endpoint:    spec.Endpoint,
		ContentType: "application/json",
		Body:        body,
	}, nil
}

func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite: %q", raw)
	}
	return v, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func buildMultipart(spec task.Spec, snap form.Snapshot) (Request, error) {
	img := snap.Image
	if img == nil || len(img.Data) == 0 {
		return Request{}, &ValidationError{Reason: NoFileSelected, Field: task.FileFieldName}
	}
	filename := util.FilenameOrDefault(img.Filename, img.Data)
	mime := img.MIME
	if mime == "" {
		mime = util.SniffMimeHTTP(img.Data)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(task.FileFieldName), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	if err != nil {
		return Request{}, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return Request{}, fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Request{}, fmt.Errorf("close multipart body: %w", err)
	}
	return Request{
		Kind:        spec.Kind,
		Endpoint:    spec.Endpoint,
		ContentType: mw.FormDataContentType(),
		Body:        buf.Bytes(),
	}, nil
}
