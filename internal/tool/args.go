package tool

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs binds a flat argument map into a typed request struct. Native
// handlers use this to get validated, typed inputs out of the model's
// loosely typed call arguments.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var req T

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return req, fmt.Errorf("building argument decoder: %w", err)
	}

	if err := decoder.Decode(args); err != nil {
		return req, fmt.Errorf("invalid arguments: %w", err)
	}

	return req, nil
}
