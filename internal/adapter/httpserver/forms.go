package httpserver

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/stockpulse/internal/app"
	apperrors "github.com/pscheid92/stockpulse/internal/platform/errors"
)

const (
	msgEnterNumber = "Enter a number."
	msgEnterDate   = "Enter a valid date."
	msgEnterChoice = "Select a valid choice."
)

// form holds submitted values and per-field errors for re-rendering.
type form struct {
	Values map[string]string
	Errors apperrors.FieldErrors
}

func newForm() *form {
	return &form{Values: map[string]string{}, Errors: apperrors.FieldErrors{}}
}

// NonField returns the error not bound to any input.
func (f *form) NonField() string {
	return f.Errors[app.FormField]
}

func (f *form) read(c echo.Context, name string) string {
	v := strings.TrimSpace(c.FormValue(name))
	f.Values[name] = v
	return v
}

// float parses name, falling back to def when the field is blank.
func (f *form) float(c echo.Context, name string, def float64) float64 {
	raw := f.read(c, name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		f.Errors.Add(name, msgEnterNumber)
		return 0
	}
	return v
}

func (f *form) optionalInt64(c echo.Context, name string) *int64 {
	raw := f.read(c, name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f.Errors.Add(name, msgEnterChoice)
		return nil
	}
	return &v
}

func (f *form) optionalDate(c echo.Context, name string) *time.Time {
	raw := f.read(c, name)
	if raw == "" {
		return nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		f.Errors.Add(name, msgEnterDate)
		return nil
	}
	return &d
}

// merge adds err's field errors to the form. It reports false when err is not
// a form validation error and must be handled as a failure.
func (f *form) merge(err error) bool {
	fields, ok := formErrors(err)
	if !ok {
		return false
	}
	for k, v := range fields {
		f.Errors.Add(k, v)
	}
	return true
}

func formErrors(err error) (apperrors.FieldErrors, bool) {
	var structured *apperrors.Error
	if !errors.As(err, &structured) || structured.Type != apperrors.TypeValidation || len(structured.Fields) == 0 {
		return nil, false
	}
	return structured.Fields, true
}

func parseID(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		// malformed IDs are indistinguishable from missing records
		return 0, apperrors.NotFoundError("not found").WithField(name, raw)
	}
	return id, nil
}

// queryInt reads a positive integer query parameter, def when absent.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.ValidationError(name + " must be a whole number").WithField(name, raw)
	}
	return v, nil
}
