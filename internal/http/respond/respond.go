// Package respond shapes responses after the format the request came in:
// JSON requests get JSON envelopes, everything else gets raw bytes or text.
package respond

import (
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pdf-generator/internal/domain"
)

// Responder writes the outcome of a PDF request.
type Responder interface {
	PDF(pdf []byte) error
	ValidationFailed(err *domain.ValidationError) error
	RenderFailed() error
	Unauthorized(err error) error
}

// For picks the responder for the request's Content-Type.
func For(c *fiber.Ctx) Responder {
	if IsJSON(c) {
		return jsonResponder{c: c}
	}
	return formResponder{c: c}
}

// IsJSON reports whether the request body is declared as JSON
// (application/json or application/*+json).
func IsJSON(c *fiber.Ctx) bool {
	mime := c.Get(fiber.HeaderContentType)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == fiber.MIMEApplicationJSON {
		return true
	}
	return strings.HasPrefix(mime, "application/") && strings.HasSuffix(mime, "+json")
}

// Error writes {"error": msg}.
func Error(c *fiber.Ctx, status int, msg any) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

type jsonResponder struct{ c *fiber.Ctx }

func (r jsonResponder) PDF(pdf []byte) error {
	return r.c.Status(fiber.StatusOK).JSON(fiber.Map{
		"pdf": base64.StdEncoding.EncodeToString(pdf),
	})
}

func (r jsonResponder) ValidationFailed(err *domain.ValidationError) error {
	return Error(r.c, fiber.StatusBadRequest, err.Messages)
}

func (r jsonResponder) RenderFailed() error {
	return Error(r.c, fiber.StatusInternalServerError, domain.MsgSystemError)
}

func (r jsonResponder) Unauthorized(err error) error {
	return Error(r.c, fiber.StatusUnauthorized, err.Error())
}

type formResponder struct{ c *fiber.Ctx }

func (r formResponder) PDF(pdf []byte) error {
	r.c.Set(fiber.HeaderContentType, "application/pdf")
	return r.c.Status(fiber.StatusOK).Send(pdf)
}

// ValidationFailed answers with JSON even for form requests.
func (r formResponder) ValidationFailed(err *domain.ValidationError) error {
	return Error(r.c, fiber.StatusBadRequest, err.Messages)
}

func (r formResponder) RenderFailed() error {
	return r.text(fiber.StatusInternalServerError, domain.MsgSystemError)
}

func (r formResponder) Unauthorized(err error) error {
	return r.text(fiber.StatusUnauthorized, err.Error())
}

func (r formResponder) text(status int, msg string) error {
	r.c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return r.c.Status(status).SendString(msg)
}
