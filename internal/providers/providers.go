// Package providers implements the Provider Dispatcher (spec §4.5, C5): a
// uniform Provider interface plus one implementation per embedding source,
// each shaped after the corresponding provider client in the original
// implementation.
package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tembo-io/vectorize-core/internal/model"
	"github.com/tembo-io/vectorize-core/internal/transformer"
)

// MaxTokenLen is the per-input token ceiling above which TrimInputs
// truncates by whitespace word count rather than retokenizing. This must
// stay a naive whitespace split, not a real tokenizer-aware trim: providers
// count tokens their own way, and retokenizing here would just substitute
// one approximation for another at much higher cost.
const MaxTokenLen = 8192

// ChunkSize is the maximum number of inputs OpenAI-compatible providers
// accept per request; larger batches are split into sequential requests
// and the results concatenated in order (spec §4.5, "no parallel OpenAI
// chunking").
const ChunkSize = 2048

const requestTimeout = 120 * time.Second

// Provider dispatches embedding requests to one upstream source.
type Provider interface {
	GenerateEmbeddings(ctx context.Context, req model.GenericEmbeddingRequest) (model.GenericEmbeddingResponse, error)
	ModelDim(ctx context.Context, modelName string) (uint32, error)
}

// Config carries the credentials and base URLs every provider constructor
// needs. Fields not relevant to a given source are ignored.
type Config struct {
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	CohereAPIKey      string
	CohereBaseURL     string
	SentenceTransformersURL string
	OllamaURL         string
	PortkeyAPIKey     string
	PortkeyVirtualKey string
	PortkeyBaseURL    string
	VoyageAPIKey      string
	VoyageBaseURL     string
	TemboAPIKey       string
	TemboBaseURL      string
}

// Get resolves the Provider implementation for src.
func Get(src transformer.Source, cfg Config) (Provider, error) {
	switch src {
	case transformer.SourceOpenAI:
		return NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey), nil
	case transformer.SourceCohere:
		return NewCohereProvider(cfg.CohereBaseURL, cfg.CohereAPIKey), nil
	case transformer.SourceSentenceTransformers:
		return NewSentenceTransformersProvider(cfg.SentenceTransformersURL), nil
	case transformer.SourceOllama:
		return NewOllamaProvider(cfg.OllamaURL), nil
	case transformer.SourcePortkey:
		return NewPortkeyProvider(cfg.PortkeyBaseURL, cfg.PortkeyAPIKey, cfg.PortkeyVirtualKey), nil
	case transformer.SourceVoyage:
		return NewVoyageProvider(cfg.VoyageBaseURL, cfg.VoyageAPIKey), nil
	case transformer.SourceTembo:
		return NewTemboProvider(cfg.TemboBaseURL, cfg.TemboAPIKey), nil
	default:
		return nil, model.NewError(model.ErrKindConfig, "providers.Get", errUnsupportedSource(src))
	}
}

var errEmptyProbe = fmt.Errorf("providers: model_dim probe returned no embeddings")

// errStatus builds an error for a non-2xx provider HTTP response.
func errStatus(code int, body string) error {
	return fmt.Errorf("provider returned status %d: %s", code, body)
}

func errUnsupportedSource(src transformer.Source) error {
	return &unsupportedSourceError{src: src}
}

type unsupportedSourceError struct{ src transformer.Source }

func (e *unsupportedSourceError) Error() string {
	return "providers: unsupported source " + string(e.src)
}

// TrimInputs renders each Input's text for a request payload, truncating by
// whitespace word count (not retokenizing) any input whose precomputed
// TokenEstimate exceeds MaxTokenLen.
func TrimInputs(inputs []model.Input) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		if int(in.TokenEstimate) > MaxTokenLen {
			words := strings.Fields(in.Inputs)
			if len(words) > MaxTokenLen {
				words = words[:MaxTokenLen]
			}
			out[i] = strings.Join(words, " ")
			continue
		}
		out[i] = in.Inputs
	}
	return out
}

// chunk splits texts into slices of at most size, preserving order.
func chunk(texts []string, size int) [][]string {
	if len(texts) <= size {
		return [][]string{texts}
	}
	var chunks [][]string
	for len(texts) > 0 {
		n := size
		if n > len(texts) {
			n = len(texts)
		}
		chunks = append(chunks, texts[:n])
		texts = texts[n:]
	}
	return chunks
}
