package common

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

type GenericEchoValidator struct {
	Validator *validator.Validate
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	if gv.Validator == nil {
		gv.Validator = validator.New()
	}
	if err := gv.Validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request body: %s", describe(err)))
	}
	return nil
}

// describe turns field errors into "field: rule" pairs
func describe(err error) string {
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), rule))
	}
	return strings.Join(parts, ", ")
}
