package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatalJobError_UnwrapsUnderlying(t *testing.T) {
	underlying := errors.New("boom")
	err := NewFatalJobError("ai_parse", underlying)

	assert.Equal(t, "ai_parse", err.Stage)
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "ai_parse")
}

func TestStageSkippableError_UnwrapsUnderlying(t *testing.T) {
	underlying := errors.New("optional enrichment failed")
	err := NewStageSkippableError("project_score", underlying)

	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "project_score")
}

func TestCircuitOpenError_NamesModel(t *testing.T) {
	err := &CircuitOpenError{Model: "gpt-4o-mini"}
	assert.Contains(t, err.Error(), "gpt-4o-mini")
}

func TestAPIError_IncludesStatusAndEndpoint(t *testing.T) {
	err := &APIError{Endpoint: "jobs/job-1", Status: 503, Message: "unavailable"}
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "jobs/job-1")
}
