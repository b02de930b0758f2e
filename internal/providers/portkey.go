package providers

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/tembo-io/vectorize-core/internal/model"
)

const portkeyBaseURL = "https://api.portkey.ai/v1"

// PortkeyProvider routes through Portkey's gateway to an underlying OpenAI-
// compatible model, authenticated by an API key plus a per-integration
// virtual key rather than a bearer token.
type PortkeyProvider struct {
	client     *resty.Client
	virtualKey string
}

// NewPortkeyProvider constructs a PortkeyProvider.
func NewPortkeyProvider(baseURL, apiKey, virtualKey string) *PortkeyProvider {
	if baseURL == "" {
		baseURL = portkeyBaseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("x-portkey-api-key", apiKey).
		SetHeader("x-portkey-virtual-key", virtualKey)
	return &PortkeyProvider{client: c, virtualKey: virtualKey}
}

func (p *PortkeyProvider) GenerateEmbeddings(ctx context.Context, req model.GenericEmbeddingRequest) (model.GenericEmbeddingResponse, error) {
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
			return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "portkey.GenerateEmbeddings", err)
		}
		if resp.IsError() {
			return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "portkey.GenerateEmbeddings", errStatus(resp.StatusCode(), resp.String()))
		}
		for _, obj := range out.Data {
			all = append(all, obj.Embedding)
		}
	}
	return model.GenericEmbeddingResponse{Embeddings: all}, nil
}

// ModelDim has no static table for Portkey (it proxies an arbitrary
// downstream model), so it probes by embedding the literal string "hello
// world" and reading back the resulting vector's length, exactly as
// original_source's PortkeyProvider::model_dim does.
func (p *PortkeyProvider) ModelDim(ctx context.Context, modelName string) (uint32, error) {
	resp, err := p.GenerateEmbeddings(ctx, model.GenericEmbeddingRequest{
		Model: modelName,
		Input: []string{"hello world"},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Embeddings) == 0 {
		return 0, model.NewError(model.ErrKindProviderProtocol, "portkey.ModelDim", errEmptyProbe)
	}
	return uint32(len(resp.Embeddings[0])), nil
}
