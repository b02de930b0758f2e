package providers

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/tembo-io/vectorize-core/internal/model"
)

const ollamaDefaultURL = "http://localhost:11434"

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// OllamaProvider talks to a local Ollama instance one input at a time: the
// Ollama HTTP API embeds a single prompt per request, unlike the
// OpenAI-shaped providers that accept a batch (grounded on
// original_source's OllamaProvider::generate_embedding looping per input).
type OllamaProvider struct {
	client *resty.Client
}

// NewOllamaProvider constructs an OllamaProvider.
func NewOllamaProvider(baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = ollamaDefaultURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json")
	return &OllamaProvider{client: c}
}

func (p *OllamaProvider) GenerateEmbeddings(ctx context.Context, req model.GenericEmbeddingRequest) (model.GenericEmbeddingResponse, error) {
	all := make([][]float64, 0, len(req.Input))
	for _, text := range req.Input {
		body := ollamaEmbedRequest{Model: req.Model, Prompt: text}
		var out ollamaEmbedResponse
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&out).
			Post("/api/embeddings")
		if err != nil {
			return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "ollama.GenerateEmbeddings", err)
		}
		if resp.IsError() {
			return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "ollama.GenerateEmbeddings", errStatus(resp.StatusCode(), resp.String()))
		}
		all = append(all, out.Embedding)
	}
	return model.GenericEmbeddingResponse{Embeddings: all}, nil
}

// ModelDim uses the original implementation's hardcoded table: llama2 maps
// to 5192, every other model to 1536.
func (p *OllamaProvider) ModelDim(_ context.Context, modelName string) (uint32, error) {
	if modelName == "llama2" {
		return 5192, nil
	}
	return 1536, nil
}
