package echoapi

import (
	"encoding/json"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pblportal/registry/core"
)

// bindList decodes a JSON array body. echo's binder only accepts structs once path params are set.
// Numbers are kept as json.Number, spreadsheet serial dates included.
func bindList(ctx echo.Context, v interface{}) error {
	dec := json.NewDecoder(ctx.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return core.NewValidationError(nil, core.FieldError{Path: "body", Message: "a JSON array is expected: " + err.Error()})
	}
	return nil
}

func bodyLimit(n int64) string {
	return strconv.FormatInt(n, 10) + "B"
}
