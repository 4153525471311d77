package respond

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-generator/internal/domain"
)

func TestIsJSON(t *testing.T) {
	tests := map[string]bool{
		"application/json":                  true,
		"application/json; charset=utf-8":   true,
		"Application/JSON":                  true,
		"application/vnd.api+json":          true,
		"application/x-www-form-urlencoded": false,
		"multipart/form-data; boundary=x":   false,
		"text/plain":                        false,
		"text/json":                         false,
		"":                                  false,
	}
	for ct, want := range tests {
		app := fiber.New()
		var got bool
		app.Post("/", func(c *fiber.Ctx) error {
			got = IsJSON(c)
			return nil
		})
		req := httptest.NewRequest("POST", "/", nil)
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		_, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, got, "content type %q", ct)
	}
}

func run(t *testing.T, contentType string, write func(Responder) error) (int, string, string) {
	t.Helper()
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error { return write(For(c)) })
	req := httptest.NewRequest("POST", "/", strings.NewReader(""))
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}

func TestJSONResponder(t *testing.T) {
	pdf := []byte("%PDF-1.7\x00\xff")

	status, ct, body := run(t, "application/json", func(r Responder) error { return r.PDF(pdf) })
	assert.Equal(t, 200, status)
	assert.Contains(t, ct, "application/json")
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	decoded, err := base64.StdEncoding.DecodeString(out["pdf"])
	require.NoError(t, err)
	assert.Equal(t, pdf, decoded)

	status, _, body = run(t, "application/json", func(r Responder) error { return r.RenderFailed() })
	assert.Equal(t, 500, status)
	assert.JSONEq(t, `{"error":"System Error!"}`, body)

	status, _, body = run(t, "application/json", func(r Responder) error { return r.Unauthorized(domain.ErrInvalidAPIKey) })
	assert.Equal(t, 401, status)
	assert.JSONEq(t, `{"error":"Invalid API Key!"}`, body)

	_, verr := domain.ParseJSON(map[string]any{})
	status, _, body = run(t, "application/json", func(r Responder) error { return r.ValidationFailed(verr.(*domain.ValidationError)) })
	assert.Equal(t, 400, status)
	assert.JSONEq(t, `{"error":{"html":["Missing data for required field."]}}`, body)
}

func TestFormResponder(t *testing.T) {
	form := "application/x-www-form-urlencoded"
	pdf := []byte("%PDF-1.7 raw")

	status, ct, body := run(t, form, func(r Responder) error { return r.PDF(pdf) })
	assert.Equal(t, 200, status)
	assert.Equal(t, "application/pdf", ct)
	assert.Equal(t, string(pdf), body)

	status, ct, body = run(t, form, func(r Responder) error { return r.RenderFailed() })
	assert.Equal(t, 500, status)
	assert.Contains(t, ct, "text/plain")
	assert.Equal(t, "System Error!", body)

	status, ct, body = run(t, form, func(r Responder) error { return r.Unauthorized(domain.ErrMissingAPIKey) })
	assert.Equal(t, 401, status)
	assert.Contains(t, ct, "text/plain")
	assert.Equal(t, "API Key header not found!", body)

	_, verr := domain.ParseForm(map[string][]string{})
	status, ct, body = run(t, form, func(r Responder) error { return r.ValidationFailed(verr.(*domain.ValidationError)) })
	assert.Equal(t, 400, status)
	assert.Contains(t, ct, "application/json")
	assert.JSONEq(t, `{"error":{"html":["Missing data for required field."]}}`, body)
}
