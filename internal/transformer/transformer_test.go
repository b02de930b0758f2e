package transformer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	cases := []struct {
		in   string
		want Model
	}{
		{"openai/text-embedding-3-small", Model{SourceOpenAI, "text-embedding-3-small"}},
		{"sentence-transformers/all-MiniLM-L6-v2", Model{SourceSentenceTransformers, "all-MiniLM-L6-v2"}},
		{"cohere/embed-english-v3.0", Model{SourceCohere, "embed-english-v3.0"}},
		{"OpenAI/Model", Model{SourceOpenAI, "Model"}},
		{"text-embedding-ada-002", Model{SourceOpenAI, "text-embedding-ada-002"}},
		{"all-MiniLM-L12-v2", Model{SourceSentenceTransformers, "all-MiniLM-L12-v2"}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, in := range []string{"openai/text-embedding-3-small", "voyage/voyage-3-lite", "tembo/gte-base"} {
		m, err := Parse(in)
		require.NoError(t, err)
		assert.Equal(t, in, m.String())
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		in      string
		wantErr error
	}{
		{"foo", ErrInvalidFormat},
		{"openaimodel-name", ErrInvalidFormat},
		{"openai/model/name", ErrInvalidFormat},
		{"unknownsource/model", ErrInvalidSource},
	}
	for _, tc := range cases {
		_, err := Parse(tc.in)
		require.Error(t, err, tc.in)
		assert.True(t, errors.Is(err, tc.wantErr), "%s: got %v, want wrapping %v", tc.in, err, tc.wantErr)
	}
}
