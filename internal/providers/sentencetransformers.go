package providers

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/tembo-io/vectorize-core/internal/model"
)

const sentenceTransformersDefaultURL = "http://localhost:3000/v1"

// modelInfo is the /info/ response shape a sentence-transformers serving
// container returns, ported from original_source's vector_serve ModelInfo.
type modelInfo struct {
	Model              string `json:"model"`
	EmbeddingDimension uint32 `json:"embedding_dimension"`
	MaxSeqLen          uint32 `json:"max_seq_len"`
}

// SentenceTransformersProvider talks to a self-hosted sentence-transformers
// serving container over the same OpenAI-shaped request/response body
// (ported from original_source's vector_serve.rs, which reuses
// openai::OpenAIEmbeddingBody).
type SentenceTransformersProvider struct {
	client *resty.Client
}

// NewSentenceTransformersProvider constructs a SentenceTransformersProvider.
func NewSentenceTransformersProvider(baseURL string) *SentenceTransformersProvider {
	if baseURL == "" {
		baseURL = sentenceTransformersDefaultURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return &SentenceTransformersProvider{client: c}
}

func (p *SentenceTransformersProvider) GenerateEmbeddings(ctx context.Context, req model.GenericEmbeddingRequest) (model.GenericEmbeddingResponse, error) {
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
			return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "sentencetransformers.GenerateEmbeddings", err)
		}
		if resp.IsError() {
			return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "sentencetransformers.GenerateEmbeddings", errStatus(resp.StatusCode(), resp.String()))
		}
		for _, obj := range out.Data {
			all = append(all, obj.Embedding)
		}
	}
	return model.GenericEmbeddingResponse{Embeddings: all}, nil
}

// ModelDim queries the serving container's /info/ endpoint rather than
// using a static table, since self-hosted models vary by deployment.
func (p *SentenceTransformersProvider) ModelDim(ctx context.Context, modelName string) (uint32, error) {
	var out modelInfo
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("model_name", modelName).
		SetResult(&out).
		Get("/info/")
	if err != nil {
		return 0, model.NewError(model.ErrKindProviderHTTP, "sentencetransformers.ModelDim", err)
	}
	if resp.IsError() {
		return 0, model.NewError(model.ErrKindProviderHTTP, "sentencetransformers.ModelDim", errStatus(resp.StatusCode(), resp.String()))
	}
	return out.EmbeddingDimension, nil
}
