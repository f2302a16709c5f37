package rest

import (
	"errors"
	"net/http"

	"github.com/antarasi/authgate"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

var errInvalidBody = goerrors.New("Invalid JSON body", goerrors.CategoryBadInput).
	WithTextCode(authgate.KindBadRequest).
	WithCode(goerrors.CodeBadRequest)

// errorHandler renders every failed request: HTML for browsers and the
// JSON wire error for everyone else.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	err = fromFiberError(err)
	wire := authgate.ToWireError(err)

	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr != nil {
		s.logger.Debug("request error",
			"path", c.Path(),
			"code", wire.Code,
			"text_code", richErr.TextCode,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	} else {
		s.logger.Error("unexpected request error", "path", c.Path(), "error", err)
	}

	c.Status(wire.Code)

	if c.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == fiber.MIMETextHTML {
		rerr := c.Render("error", fiber.Map{
			"code":      wire.Code,
			"name":      wire.Name,
			"message":   wire.Message,
			"className": wire.ClassName,
		})
		if rerr == nil {
			return nil
		}
		s.logger.Error("error view render failed", "error", rerr)
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(wire.Code).SendString(wire.Message)
	}

	return c.JSON(wire)
}

// fromFiberError maps router level errors onto our own
func fromFiberError(err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return err
	}
	switch fe.Code {
	case http.StatusNotFound:
		return authgate.ErrPageNotFound
	case http.StatusMethodNotAllowed:
		return authgate.ErrMethodNotAllowed
	case http.StatusBadRequest:
		return errInvalidBody
	default:
		category := goerrors.CategoryInternal
		if fe.Code < http.StatusInternalServerError {
			category = goerrors.CategoryBadInput
		}
		return goerrors.New(fe.Message, category).WithCode(fe.Code)
	}
}
