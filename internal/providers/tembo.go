package providers

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/tembo-io/vectorize-core/internal/model"
)

const temboDefaultURL = "https://api.tembo.io/v1"

// TemboProvider talks to Tembo's hosted embedding proxy. original_source
// never implements this source (its providers::mod.rs stubs
// `Ollama | Tembo => unimplemented`); this repo treats it as an
// OpenAI-compatible proxy, the shape every other hosted-gateway source in
// this package shares.
type TemboProvider struct {
	client *resty.Client
}

// NewTemboProvider constructs a TemboProvider.
func NewTemboProvider(baseURL, apiKey string) *TemboProvider {
	if baseURL == "" {
		baseURL = temboDefaultURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)
	return &TemboProvider{client: c}
}

func (p *TemboProvider) GenerateEmbeddings(ctx context.Context, req model.GenericEmbeddingRequest) (model.GenericEmbeddingResponse, error) {
	chunks := chunk(req.Input, ChunkSize)
	all := make([][]float64, 0, len(req.Input))

	for _, c := range chunks {
		body := openAIEmbeddingBody{Model: req.Model, Input: c}
		var out openAIEmbeddingResponse
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&out).
			Post("/embeddings")
		if err != nil {
			return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "tembo.GenerateEmbeddings", err)
		}
		if resp.IsError() {
			return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "tembo.GenerateEmbeddings", errStatus(resp.StatusCode(), resp.String()))
		}
		for _, obj := range out.Data {
			all = append(all, obj.Embedding)
		}
	}
	return model.GenericEmbeddingResponse{Embeddings: all}, nil
}

// ModelDim probes with "hello world", the same strategy used for the
// other gateway providers with no static table.
func (p *TemboProvider) ModelDim(ctx context.Context, modelName string) (uint32, error) {
	resp, err := p.GenerateEmbeddings(ctx, model.GenericEmbeddingRequest{
		Model: modelName,
		Input: []string{"hello world"},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Embeddings) == 0 {
		return 0, model.NewError(model.ErrKindProviderProtocol, "tembo.ModelDim", errEmptyProbe)
	}
	return uint32(len(resp.Embeddings[0])), nil
}
