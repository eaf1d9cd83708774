package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// payloadValidator enforces the struct-tag validation rules on each decoded
// queue payload before it reaches a pipeline, so malformed payloads fail
// before any backend or LLM call.
var payloadValidator = validator.New()

func validatePayload(v any) error {
	if err := payloadValidator.Struct(v); err != nil {
		return fmt.Errorf("payload validation failed: %w", err)
	}
	return nil
}
