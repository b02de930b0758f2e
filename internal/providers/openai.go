package providers

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/tembo-io/vectorize-core/internal/model"
)

const openAIBaseURL = "https://api.openai.com/v1"

// openAIEmbeddingDims is the static model_dim table ported from
// original_source's openai_embedding_dim, including its fallback to 1536
// for unrecognized model names.
var openAIEmbeddingDims = map[string]uint32{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

type openAIEmbeddingBody struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingObject struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type openAIEmbeddingResponse struct {
	Model string                   `json:"model"`
	Data  []openAIEmbeddingObject  `json:"data"`
}

// OpenAIProvider talks to the OpenAI-compatible /v1/embeddings endpoint.
type OpenAIProvider struct {
	client *resty.Client
	apiKey string
}

// NewOpenAIProvider constructs an OpenAIProvider. An empty baseURL falls
// back to the public OpenAI API.
func NewOpenAIProvider(baseURL, apiKey string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)
	return &OpenAIProvider{client: c, apiKey: apiKey}
}

// GenerateEmbeddings dispatches req.Input in sequential chunks of at most
// ChunkSize, concatenating results in request order.
func (p *OpenAIProvider) GenerateEmbeddings(ctx context.Context, req model.GenericEmbeddingRequest) (model.GenericEmbeddingResponse, error) {
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
			return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "openai.GenerateEmbeddings", err)
		}
		if resp.IsError() {
			return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "openai.GenerateEmbeddings", errStatus(resp.StatusCode(), resp.String()))
		}
		for _, obj := range out.Data {
			all = append(all, obj.Embedding)
		}
	}
	return model.GenericEmbeddingResponse{Embeddings: all}, nil
}

// ModelDim looks up modelName in the static dimension table, defaulting to
// 1536 for unrecognized models, matching the original implementation.
func (p *OpenAIProvider) ModelDim(_ context.Context, modelName string) (uint32, error) {
	if dim, ok := openAIEmbeddingDims[modelName]; ok {
		return dim, nil
	}
	return 1536, nil
}
