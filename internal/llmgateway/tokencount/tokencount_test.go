package tokencount

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	tests := []struct {
		name     string
		text     string
		model    string
		minCount int
		maxCount int
	}{
		{
			name:     "simple text",
			text:     "Hello, world!",
			model:    "gpt-4o-mini",
			minCount: 3,
			maxCount: 5,
		},
		{
			name:     "longer text",
			text:     "The quick brown fox jumps over the lazy dog.",
			model:    "gpt-4o-mini",
			minCount: 8,
			maxCount: 12,
		},
		{
			name:     "empty text",
			text:     "",
			model:    "gpt-4o-mini",
			minCount: 0,
			maxCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := counter.CountTokens(tt.text, tt.model)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, count, tt.minCount)
			assert.LessOrEqual(t, count, tt.maxCount)
		})
	}
}

func TestCountChatTokens_IncludesMessageOverhead(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	count, err := counter.CountChatTokens("You are a resume parser.", "Parse this resume.", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Greater(t, count, 10, "chat tokens should include message overhead")

	emptyCount, err := counter.CountChatTokens("", "", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Greater(t, emptyCount, 0, "overhead tokens remain even with empty prompts")
}

func TestCalculateUsage(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	usage, err := counter.CalculateUsage(
		"You are a resume parser.",
		"Parse this resume.",
		"Here is the structured output.",
		"gpt-4o-mini",
		"openai",
	)
	require.NoError(t, err)
	assert.Greater(t, usage.PromptTokens, 0)
	assert.Greater(t, usage.CompletionTokens, 0)
	assert.Equal(t, usage.PromptTokens+usage.CompletionTokens, usage.TotalTokens)
	assert.Equal(t, "gpt-4o-mini", usage.Model)
	assert.Equal(t, "openai", usage.Provider)
}

func TestNormalizeModelName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"gpt-4o-mini", "gpt-4o"},
		{"gpt-4o-2024-08-06", "gpt-4o"},
		{"GPT-4-TURBO", "gpt-4"},
		{"gpt-3.5-turbo-0125", "gpt-3.5-turbo"},
		{"text-embedding-3-small", "text-embedding-3-small"},
		{"text-embedding-3-large", "text-embedding-3-small"},
		{"unknown-model", "gpt-4"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeModelName(tt.input))
		})
	}
}

func TestCountTokens_LongText(t *testing.T) {
	t.Parallel()

	counter := NewCounter()
	longText := strings.Repeat("This is a test sentence to check token counting for longer texts. ", 100)

	count, err := counter.CountTokens(longText, "gpt-4o-mini")
	require.NoError(t, err)
	assert.Greater(t, count, 1000)
}

func TestCounter_EncodingCacheIsConcurrencySafe(t *testing.T) {
	t.Parallel()

	counter := NewCounter()
	models := []string{"gpt-4o-mini", "gpt-3.5-turbo", "text-embedding-3-small", "unknown-model"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, model := range models {
			wg.Add(1)
			go func(m string) {
				defer wg.Done()
				_, err := counter.CountTokens("Hello world", m)
				assert.NoError(t, err)
			}(model)
		}
	}
	wg.Wait()
}

func TestDefaultCounter(t *testing.T) {
	count, err := CountTokensDefault("Hello, world!", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Greater(t, count, 0)

	usage, err := CalculateUsageDefault("System", "User", "Response", "gpt-4o-mini", "openai")
	require.NoError(t, err)
	assert.Equal(t, usage.TotalTokens, usage.PromptTokens+usage.CompletionTokens)
}
