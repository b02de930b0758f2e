package providers

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/tembo-io/vectorize-core/internal/model"
)

const voyageBaseURL = "https://api.voyageai.com/v1"

type voyageEmbeddingBody struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type voyageEmbeddingObject struct {
	Embedding []float64 `json:"embedding"`
}

type voyageEmbeddingResponse struct {
	Data []voyageEmbeddingObject `json:"data"`
}

// VoyageProvider talks to Voyage AI's /v1/embeddings endpoint. Voyage has
// no per-request chunking limit documented in the original implementation,
// so requests are sent whole.
type VoyageProvider struct {
	client *resty.Client
}

// NewVoyageProvider constructs a VoyageProvider.
func NewVoyageProvider(baseURL, apiKey string) *VoyageProvider {
	if baseURL == "" {
		baseURL = voyageBaseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)
	return &VoyageProvider{client: c}
}

func (p *VoyageProvider) GenerateEmbeddings(ctx context.Context, req model.GenericEmbeddingRequest) (model.GenericEmbeddingResponse, error) {
	body := voyageEmbeddingBody{Input: req.Input, Model: req.Model, InputType: "document"}
	var out voyageEmbeddingResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/embeddings")
	if err != nil {
		return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "voyage.GenerateEmbeddings", err)
	}
	if resp.IsError() {
		return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "voyage.GenerateEmbeddings", errStatus(resp.StatusCode(), resp.String()))
	}
	embeddings := make([][]float64, len(out.Data))
	for i, obj := range out.Data {
		embeddings[i] = obj.Embedding
	}
	return model.GenericEmbeddingResponse{Embeddings: embeddings}, nil
}

// ModelDim probes with the literal string "hello world", matching
// original_source's VoyageProvider::model_dim — Voyage has no published
// static dimension table in the original implementation either.
func (p *VoyageProvider) ModelDim(ctx context.Context, modelName string) (uint32, error) {
	resp, err := p.GenerateEmbeddings(ctx, model.GenericEmbeddingRequest{
		Model: modelName,
		Input: []string{"hello world"},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Embeddings) == 0 {
		return 0, model.NewError(model.ErrKindProviderProtocol, "voyage.ModelDim", errEmptyProbe)
	}
	return uint32(len(resp.Embeddings[0])), nil
}
