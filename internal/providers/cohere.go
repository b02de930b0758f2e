package providers

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/tembo-io/vectorize-core/internal/model"
)

const cohereBaseURL = "https://api.cohere.com/v1"

// cohereModelDimensions is ported verbatim from original_source's
// lazy_static MODEL_DIMENSIONS table.
var cohereModelDimensions = map[string]uint32{
	"embed-english-v3.0":             1024,
	"embed-multilingual-v3.0":        1024,
	"embed-english-light-v3.0":       384,
	"embed-multilingual-light-v3.0":  384,
	"embed-english-v2.0":             4096,
	"embed-english-light-v2.0":       1024,
	"embed-multilingual-v2.0":        768,
}

type cohereEmbeddingBody struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate"`
}

type cohereEmbeddingResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// CohereProvider talks to Cohere's /v1/embed endpoint. Unlike OpenAI this
// request is never chunked: Cohere's own API enforces its input limits.
type CohereProvider struct {
	client *resty.Client
}

// NewCohereProvider constructs a CohereProvider.
func NewCohereProvider(baseURL, apiKey string) *CohereProvider {
	if baseURL == "" {
		baseURL = cohereBaseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)
	return &CohereProvider{client: c}
}

func (p *CohereProvider) GenerateEmbeddings(ctx context.Context, req model.GenericEmbeddingRequest) (model.GenericEmbeddingResponse, error) {
	body := cohereEmbeddingBody{
		Model:     req.Model,
		Texts:     req.Input,
		InputType: "search_document",
		Truncate:  "END",
	}
	var out cohereEmbeddingResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/embed")
	if err != nil {
		return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "cohere.GenerateEmbeddings", err)
	}
	if resp.IsError() {
		return model.GenericEmbeddingResponse{}, model.NewError(model.ErrKindProviderHTTP, "cohere.GenerateEmbeddings", errStatus(resp.StatusCode(), resp.String()))
	}
	return model.GenericEmbeddingResponse{Embeddings: out.Embeddings}, nil
}

func (p *CohereProvider) ModelDim(_ context.Context, modelName string) (uint32, error) {
	dim, ok := cohereModelDimensions[modelName]
	if !ok {
		return 0, model.NewError(model.ErrKindTransformerInvalid, "cohere.ModelDim", fmt.Errorf("unknown cohere model %q", modelName))
	}
	return dim, nil
}
