package httpserver

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
)

func jsonDecode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	return errors.As(err, target)
}
