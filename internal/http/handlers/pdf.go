package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pdf-generator/internal/domain"
	"pdf-generator/internal/http/respond"
	"pdf-generator/internal/infra/chrome"
	"pdf-generator/internal/infra/logging"
)

// Renderer produces PDF bytes or domain.ErrRender.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// StatsProvider reports the state of the browser tab pool.
type StatsProvider interface {
	Stats() (chrome.Stats, error)
}

// PDFService serves the conversion endpoint.
type PDFService struct {
	renderer Renderer
	stats    StatsProvider
}

// NewPDFService creates a new PDFService. stats may be nil.
func NewPDFService(renderer Renderer, stats StatsProvider) *PDFService {
	return &PDFService{renderer: renderer, stats: stats}
}

// HandleConversion validates the payload, renders it and answers in the
// format the request was sent in.
func (svc *PDFService) HandleConversion(c *fiber.Ctx) error {
	out := respond.For(c)

	var (
		req domain.PDFRequest
		err error
	)
	if respond.IsJSON(c) {
		req, err = parseJSONBody(c)
	} else {
		req, err = parseFormBody(c)
	}
	if err != nil {
		if verr, ok := domain.AsValidation(err); ok {
			logging.Info("Request rejected", "path", c.Path(), "reason", verr.Error())
			return out.ValidationFailed(verr)
		}
		return err
	}

	pdf, err := svc.renderer.Render(c.UserContext(), req.HTML)
	if err != nil {
		return out.RenderFailed()
	}
	logging.Info("PDF generated", "bytes", len(pdf), "request_id", c.GetRespHeader(fiber.HeaderXRequestID))
	return out.PDF(pdf)
}

func parseJSONBody(c *fiber.Ctx) (domain.PDFRequest, error) {
	var payload any
	if err := c.App().Config().JSONDecoder(c.Body(), &payload); err != nil {
		return domain.PDFRequest{}, domain.InvalidPayload()
	}
	fields, _ := payload.(map[string]any)
	return domain.ParseJSON(fields)
}

func parseFormBody(c *fiber.Ctx) (domain.PDFRequest, error) {
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return domain.PDFRequest{}, domain.InvalidPayload()
		}
		return domain.ParseForm(form.Value)
	}

	values := make(map[string][]string)
	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		values[string(k)] = append(values[string(k)], string(v))
	})
	return domain.ParseForm(values)
}

// HandleChromeStats reports the tab pool state.
func (svc *PDFService) HandleChromeStats(c *fiber.Ctx) error {
	if svc.stats == nil {
		return c.JSON(chrome.Stats{})
	}
	st, err := svc.stats.Stats()
	if err != nil {
		logging.Error("Chrome pool unavailable", "error", err)
		return respond.Error(c, fiber.StatusInternalServerError, "chrome pool unavailable")
	}
	return c.JSON(st)
}
