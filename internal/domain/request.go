package domain

// Validation messages, one per failure mode of a schema field.
const (
	MsgRequired     = "Missing data for required field."
	MsgNull         = "Field may not be null."
	MsgNotString    = "Not a valid string."
	MsgInvalidInput = "Invalid input type."
)

// FieldHTML is the only field the PDF request schema knows about.
const FieldHTML = "html"

// PDFRequest is a validated request to render HTML into a PDF.
type PDFRequest struct {
	HTML string
}

// ParseJSON validates a decoded JSON payload. Fields other than html are
// ignored. A nil map means the body was not a JSON object.
func ParseJSON(payload map[string]any) (PDFRequest, error) {
	verr := &ValidationError{}
	if payload == nil {
		verr.add(SchemaField, MsgInvalidInput)
		return PDFRequest{}, verr
	}

	raw, ok := payload[FieldHTML]
	switch {
	case !ok:
		verr.add(FieldHTML, MsgRequired)
	case raw == nil:
		verr.add(FieldHTML, MsgNull)
	default:
		s, isString := raw.(string)
		if !isString {
			verr.add(FieldHTML, MsgNotString)
			break
		}
		return PDFRequest{HTML: s}, nil
	}
	return PDFRequest{}, verr
}

// ParseForm validates form values. Form values are always strings, so the
// only failure is a missing field. An empty value is accepted.
func ParseForm(values map[string][]string) (PDFRequest, error) {
	v, ok := values[FieldHTML]
	if !ok || len(v) == 0 {
		verr := &ValidationError{}
		verr.add(FieldHTML, MsgRequired)
		return PDFRequest{}, verr
	}
	return PDFRequest{HTML: v[0]}, nil
}

// InvalidPayload is the error for bodies that cannot be decoded at all.
func InvalidPayload() *ValidationError {
	verr := &ValidationError{}
	verr.add(SchemaField, MsgInvalidInput)
	return verr
}
