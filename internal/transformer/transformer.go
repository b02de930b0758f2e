// Package transformer parses the "provider/model" transformer identifier
// grammar described in spec §4.1 and §6.
package transformer

import (
	"fmt"
	"strings"

	stderrors "errors"
)

// Source is one of the supported embedding providers.
type Source string

const (
	SourceOpenAI               Source = "openai"
	SourceSentenceTransformers Source = "sentence-transformers"
	SourceOllama               Source = "ollama"
	SourceCohere               Source = "cohere"
	SourcePortkey              Source = "portkey"
	SourceVoyage               Source = "voyage"
	SourceTembo                Source = "tembo"
)

var validSources = map[Source]bool{
	SourceOpenAI:               true,
	SourceSentenceTransformers: true,
	SourceOllama:               true,
	SourceCohere:               true,
	SourcePortkey:              true,
	SourceVoyage:               true,
	SourceTembo:                true,
}

// Model is a parsed transformer identifier.
type Model struct {
	Source Source
	Name   string
}

// String formats the model back into "provider/model" form.
func (m Model) String() string {
	return fmt.Sprintf("%s/%s", m.Source, m.Name)
}

var (
	// ErrInvalidFormat is returned for strings that are not exactly one
	// "/"-delimited pair and are not one of the two legacy bare aliases.
	ErrInvalidFormat = stderrors.New("transformer: invalid format")
	// ErrInvalidSource is returned when the provider segment does not name
	// a known ModelSource.
	ErrInvalidSource = stderrors.New("transformer: invalid source")
)

// legacy bare-name aliases, resolved to their canonical provider/model form.
const (
	legacyOpenAIAlias = "text-embedding-ada-002"
	legacySTAlias     = "all-MiniLM-L12-v2"
)

// Parse splits input on "/" and validates the provider segment. Exactly one
// slash is required except for the two legacy bare aliases, which resolve
// to a canonical (source, model) pair. Anything else — no slash and not a
// known alias, or more than one slash — is ErrInvalidFormat.
func Parse(input string) (Model, error) {
	parts := strings.Split(input, "/")
	if len(parts) != 2 {
		switch input {
		case legacyOpenAIAlias:
			return Model{Source: SourceOpenAI, Name: legacyOpenAIAlias}, nil
		case legacySTAlias:
			return Model{Source: SourceSentenceTransformers, Name: legacySTAlias}, nil
		default:
			return Model{}, fmt.Errorf("%w: %q", ErrInvalidFormat, input)
		}
	}

	src := Source(strings.ToLower(parts[0]))
	if !validSources[src] {
		return Model{}, fmt.Errorf("%w: %q", ErrInvalidSource, parts[0])
	}
	return Model{Source: src, Name: parts[1]}, nil
}
