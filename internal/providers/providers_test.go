package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/vectorize-core/internal/model"
)

func TestTrimInputsLeavesShortInputsUnchanged(t *testing.T) {
	inputs := []model.Input{{Inputs: "hello world", TokenEstimate: 5}}
	out := TrimInputs(inputs)
	assert.Equal(t, []string{"hello world"}, out)
}

func TestTrimInputsTruncatesByWhitespaceWords(t *testing.T) {
	words := make([]string, 10000)
	for i := range words {
		words[i] = "w"
	}
	text := ""
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		text += w
	}
	inputs := []model.Input{{Inputs: text, TokenEstimate: MaxTokenLen + 1}}
	out := TrimInputs(inputs)
	assert.Len(t, splitWords(out[0]), MaxTokenLen)
}

func splitWords(s string) []string {
	var words []string
	cur := ""
	for _, r := range s {
		if r == ' ' {
			if cur != "" {
				words = append(words, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		words = append(words, cur)
	}
	return words
}

func TestChunkSplitsAt2048(t *testing.T) {
	texts := make([]string, 4100)
	for i := range texts {
		texts[i] = "x"
	}
	chunks := chunk(texts, ChunkSize)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2048)
	assert.Len(t, chunks[1], 2048)
	assert.Len(t, chunks[2], 4)
}

func TestOpenAIProviderChunksSequentially(t *testing.T) {
	var requestSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body openAIEmbeddingBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		requestSizes = append(requestSizes, len(body.Input))
		resp := openAIEmbeddingResponse{Model: body.Model}
		for i := range body.Input {
			resp.Data = append(resp.Data, openAIEmbeddingObject{Index: i, Embedding: []float64{1, 2, 3}})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "test-key")
	inputs := make([]string, 4100)
	for i := range inputs {
		inputs[i] = "hello"
	}
	resp, err := p.GenerateEmbeddings(context.Background(), model.GenericEmbeddingRequest{
		Model: "text-embedding-3-small", Input: inputs,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Embeddings, 4100)
	assert.Equal(t, []int{2048, 2048, 4}, requestSizes)
}

func TestOpenAIModelDimKnownAndFallback(t *testing.T) {
	p := NewOpenAIProvider("http://unused", "key")
	dim, err := p.ModelDim(context.Background(), "text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, uint32(1536), dim)

	dim, err = p.ModelDim(context.Background(), "unknown-model")
	require.NoError(t, err)
	assert.Equal(t, uint32(1536), dim)
}

func TestCohereModelDimUnknownErrors(t *testing.T) {
	p := NewCohereProvider("http://unused", "key")
	_, err := p.ModelDim(context.Background(), "no-such-model")
	require.Error(t, err)
	assert.Equal(t, model.ErrKindTransformerInvalid, model.KindOf(err))
}

func TestOllamaModelDim(t *testing.T) {
	p := NewOllamaProvider("http://unused")
	dim, err := p.ModelDim(context.Background(), "llama2")
	require.NoError(t, err)
	assert.Equal(t, uint32(5192), dim)

	dim, err = p.ModelDim(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, uint32(1536), dim)
}
