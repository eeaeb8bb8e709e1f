package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_ParticipantWords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{
			name: "two speakers two segments each",
			input: `[
				{"participant": {"id": 1, "name": "Alice"}, "words": [{"text": "Hello"}, {"text": "everyone"}]},
				{"participant": {"id": 1, "name": "Alice"}, "words": [{"text": "welcome"}]},
				{"participant": {"id": 2, "name": "Bob"}, "words": [{"text": "Thanks"}]},
				{"participant": {"id": 2, "name": "Bob"}, "words": [{"text": "Alice"}]}
			]`,
			expected: "Alice: Hello everyone welcome\nBob: Thanks Alice",
			ok:       true,
		},
		{
			name: "speaker change flushes and returns",
			input: `[
				{"participant": "Alice", "words": ["one"]},
				{"participant": "Bob", "words": ["two"]},
				{"participant": "Alice", "words": ["three"]}
			]`,
			expected: "Alice: one\nBob: two\nAlice: three",
			ok:       true,
		},
		{
			name: "participant id used when name missing",
			input: `[
				{"participant": {"id": 42}, "words": [{"word": "hi"}]}
			]`,
			expected: "42: hi",
			ok:       true,
		},
		{
			name: "large participant id printed as integer",
			input: `[
				{"participant": {"id": 16778240}, "words": [{"text": "hi"}]}
			]`,
			expected: "16778240: hi",
			ok:       true,
		},
		{
			name: "zero participant id is unknown",
			input: `[
				{"participant": {"id": 0}, "words": [{"text": "hi"}]}
			]`,
			expected: "hi",
			ok:       true,
		},
		{
			name: "speaker field used when participant empty",
			input: `[
				{"participant": null, "speaker": "Carol", "words": [{"content": "ok"}]}
			]`,
			expected: "Carol: ok",
			ok:       true,
		},
		{
			name: "unknown speaker has no prefix",
			input: `[
				{"participant": null, "words": [{"text": "anonymous"}, {"text": "words"}]}
			]`,
			expected: "anonymous words",
			ok:       true,
		},
		{
			name: "segments without words are skipped",
			input: `[
				{"participant": "Alice", "words": []},
				{"participant": "Bob", "words": [{"text": ""}, {"text": "yes"}]}
			]`,
			expected: "Bob: yes",
			ok:       true,
		},
		{
			name:  "no words at all",
			input: `[{"participant": "Alice", "words": []}]`,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse([]byte(tt.input))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParse_Fallbacks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{
			name:     "flat list of segments",
			input:    `[{"speaker": "Alice", "text": "Hi"}, {"text": "no speaker"}, "raw line"]`,
			expected: "Alice: Hi\nno speaker\nraw line",
			ok:       true,
		},
		{
			name:     "segments key",
			input:    `{"segments": [{"speaker_name": "Bob", "content": "Agenda"}, {"transcript": "Done"}]}`,
			expected: "Bob: Agenda\nDone",
			ok:       true,
		},
		{
			name:     "words key",
			input:    `{"words": [{"word": "alpha"}, {"word": "beta"}]}`,
			expected: "alpha\nbeta",
			ok:       true,
		},
		{
			name:     "text field",
			input:    `{"text": "the whole meeting"}`,
			expected: "the whole meeting",
			ok:       true,
		},
		{
			name:     "transcript field",
			input:    `{"transcript": "summary text"}`,
			expected: "summary text",
			ok:       true,
		},
		{
			name:     "empty text field",
			input:    `{"text": ""}`,
			expected: "",
			ok:       false,
		},
		{
			name:     "any list of text objects",
			input:    `{"meta": {"lang": "en"}, "entries": [{"participant": "Dan", "text": "found"}]}`,
			expected: "Dan: found",
			ok:       true,
		},
		{
			name:     "object speaker resolves to name",
			input:    `[{"speaker": {"name": "Eve"}, "text": "hello"}]`,
			expected: "Eve: hello",
			ok:       true,
		},
		{
			name:  "unrecognized object",
			input: `{"status": "processing"}`,
			ok:    false,
		},
		{
			name:  "empty list",
			input: `[]`,
			ok:    false,
		},
		{
			name:  "segments without text",
			input: `[{"speaker": "Alice"}]`,
			ok:    false,
		},
		{
			name:  "scalar",
			input: `42`,
			ok:    false,
		},
		{
			name:  "invalid json",
			input: `{not json`,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse([]byte(tt.input))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalize_NilPayload(t *testing.T) {
	got, ok := Normalize(nil)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestNormalize_FloatParticipantID(t *testing.T) {
	payload := []any{
		map[string]any{
			"participant": map[string]any{"id": float64(16778240)},
			"words":       []any{map[string]any{"text": "hi"}},
		},
	}
	got, ok := Normalize(payload)
	assert.True(t, ok)
	assert.Equal(t, "16778240: hi", got)
}
