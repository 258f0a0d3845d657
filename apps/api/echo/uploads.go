package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/services/upload"
)

func (s *Server) uploadDepositSlip(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return errMissingFile
	}
	if max := s.deps.Uploads.MaxBytes(); max > 0 && fh.Size > max {
		return upload.ErrTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	url, err := s.deps.Uploads.Save(f)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"url": url})
}
