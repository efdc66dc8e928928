package embed

import (
	"fmt"
	"sort"
	"strings"
)

// Preset is a named embedding configuration: model identity plus the
// batching limits the indexer sizes its work by.
type Preset struct {
	Name       string
	ModelName  string
	Dimensions int
	MaxSeqLen  int
	BatchSize  int
}

// DefaultPreset is used when neither configuration nor environment names
// a model.
const DefaultPreset = "fast"

// presets maps preset names to their fixed model configuration. The
// code-small preset currently aliases the fast model.
var presets = map[string]Preset{
	"fast": {
		Name:       "fast",
		ModelName:  "sentence-transformers/all-MiniLM-L6-v2",
		Dimensions: 384,
		MaxSeqLen:  256,
		BatchSize:  64,
	},
	"balanced": {
		Name:       "balanced",
		ModelName:  "sentence-transformers/all-mpnet-base-v2",
		Dimensions: 768,
		MaxSeqLen:  384,
		BatchSize:  32,
	},
	"accurate": {
		Name:       "accurate",
		ModelName:  "sentence-transformers/all-roberta-large-v1",
		Dimensions: 1024,
		MaxSeqLen:  512,
		BatchSize:  16,
	},
	"multilingual": {
		Name:       "multilingual",
		ModelName:  "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2",
		Dimensions: 384,
		MaxSeqLen:  128,
		BatchSize:  32,
	},
	"code-small": {
		Name:       "code-small",
		ModelName:  "sentence-transformers/all-MiniLM-L6-v2",
		Dimensions: 384,
		MaxSeqLen:  256,
		BatchSize:  64,
	},
}

// LookupPreset resolves a preset by name, case-insensitively.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// ResolveModel interprets a RAGEX_EMBEDDING_MODEL-style value: a preset
// name resolves to its preset; anything else is treated as a raw model
// name with the given fallback dimensions. Empty input resolves to the
// default preset.
func ResolveModel(value string, fallbackDims int) Preset {
	if value == "" {
		p, _ := LookupPreset(DefaultPreset)
		return p
	}
	if p, ok := LookupPreset(value); ok {
		return p
	}
	if fallbackDims <= 0 {
		fallbackDims = DefaultDimensions
	}
	return Preset{
		Name:       value,
		ModelName:  value,
		Dimensions: fallbackDims,
		MaxSeqLen:  512,
		BatchSize:  DefaultBatchSize,
	}
}

// ListPresets returns the preset table sorted by name, for `ragex status`
// style listings.
func ListPresets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// String renders a preset the way listings print it.
func (p Preset) String() string {
	return fmt.Sprintf("%s: %s (%dd)", p.Name, p.ModelName, p.Dimensions)
}
