// Package rerank re-scores a candidate list of semantic hits by adding
// small, bounded, hand-tuned features to the base cosine similarity
//. The reranker is a pure function over its input; every
// hit carries its per-feature contributions for debuggability.
package rerank

import (
	"regexp"
	"sort"
	"strings"

	"github.com/codesearch/ragex/internal/config"
)

// Hit is one semantic candidate handed to the reranker. Line is carried
// through untouched so callers can map reordered results back to source
// locations.
type Hit struct {
	Name      string
	Kind      string
	File      string
	Line      int
	Code      string
	Signature string
	Docstring string
	BaseScore float64
}

// Contribution records one feature that fired for a hit and the weight it
// added to the score.
type Contribution struct {
	Feature string
	Weight  float64
}

// ScoredHit is a Hit plus its reranked score and the contributions that
// produced it.
type ScoredHit struct {
	Hit
	Score         float64
	Contributions []Contribution
}

// Intent captures what the query appears to be asking for, derived by
// regex probes over the query text.
type Intent struct {
	WantsClass    bool
	WantsFunction bool
	WantsVariable bool
	TestOriented  bool
	WantsAuth     bool
	WantsAPI      bool
}

var (
	classProbe    = regexp.MustCompile(`(?i)\bclass\b`)
	functionProbe = regexp.MustCompile(`(?i)\b(function|func|def|method)\b`)
	variableProbe = regexp.MustCompile(`(?i)\b(var|variable|const|constant)\b`)
	testProbe     = regexp.MustCompile(`(?i)\b(test|spec)\b`)
	authProbe     = regexp.MustCompile(`(?i)\b(auth|authenticate|login|credential)\b`)
	apiProbe      = regexp.MustCompile(`(?i)\b(api|endpoint|route|handler)\b`)

	definitionProbe = regexp.MustCompile(`(?m)^\s*(def |class |function |func |const |interface )`)
	importProbe     = regexp.MustCompile(`(?m)^\s*(import |from .+ import |require\()`)
)

// DetectIntent probes query for the keyword classes the feature table
// cares about.
func DetectIntent(query string) Intent {
	return Intent{
		WantsClass:    classProbe.MatchString(query),
		WantsFunction: functionProbe.MatchString(query),
		WantsVariable: variableProbe.MatchString(query),
		TestOriented:  testProbe.MatchString(query),
		WantsAuth:     authProbe.MatchString(query),
		WantsAPI:      apiProbe.MatchString(query),
	}
}

// Reranker applies the configured feature weights to a candidate list.
type Reranker struct {
	weights config.RerankConfig
}

// New builds a Reranker with the given weights. Weights come from
// configuration rather than constants: the default values were
// hand-picked, not normative.
func New(weights config.RerankConfig) *Reranker {
	return &Reranker{weights: weights}
}

// Rerank scores every hit, sorts descending by final score, and truncates
// to topK (0 means no truncation). The input slice is not mutated.
func (r *Reranker) Rerank(query string, hits []Hit, topK int) []ScoredHit {
	intent := DetectIntent(query)
	queryLower := strings.ToLower(query)
	queryWords := splitWords(queryLower)

	scored := make([]ScoredHit, len(hits))
	for i, h := range hits {
		scored[i] = r.score(h, queryLower, queryWords, intent)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	return scored
}

func (r *Reranker) score(h Hit, queryLower string, queryWords []string, intent Intent) ScoredHit {
	s := ScoredHit{Hit: h, Score: h.BaseScore}
	add := func(feature string, weight float64) {
		if weight == 0 {
			return
		}
		s.Score += weight
		s.Contributions = append(s.Contributions, Contribution{Feature: feature, Weight: weight})
	}

	nameLower := strings.ToLower(h.Name)

	if nameLower != "" && queryLower != "" && strings.Contains(nameLower, strings.TrimSpace(queryLower)) {
		add("exact_name_match", r.weights.ExactNameMatch)
	} else if anyWordInName(queryWords, nameLower) {
		add("whole_word_match", r.weights.WholeWordMatch)
	}

	if kindMatchesIntent(h.Kind, intent) {
		add("kind_matches_intent", r.weights.KindMatchesIntent)
	}

	if strings.TrimSpace(h.Docstring) != "" {
		add("has_docstring", r.weights.HasDocstring)
	}

	if pathMatchesIntent(h.File, intent) {
		add("path_matches_intent", r.weights.PathMatchesIntent)
	}

	if !intent.TestOriented && inPenalizedDir(h.File) {
		add("test_dir_penalty", r.weights.TestDirPenalty)
	}

	if h.Kind == "comment" {
		add("comment_penalty", r.weights.CommentPenalty)
	}

	switch codeShape(h.Code) {
	case shapeDefinition:
		add("definition_code", 2*r.weights.UsageVsDefinition)
	case shapeImportOrUsage:
		add("import_or_usage_code", r.weights.UsageVsDefinition)
	}

	return s
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r == '_')
	})
}

// anyWordInName reports whether any whole word of the query appears as a
// word boundary-delimited token of the (lowercased) symbol name.
func anyWordInName(queryWords []string, nameLower string) bool {
	if nameLower == "" {
		return false
	}
	nameWords := splitWords(strings.ReplaceAll(nameLower, "_", " "))
	for _, qw := range queryWords {
		if len(qw) < 2 {
			continue
		}
		for _, nw := range nameWords {
			if qw == nw {
				return true
			}
		}
	}
	return false
}

func kindMatchesIntent(kind string, intent Intent) bool {
	switch kind {
	case "class", "interface":
		return intent.WantsClass
	case "function", "method":
		return intent.WantsFunction
	case "variable", "constant", "env_var":
		return intent.WantsVariable
	default:
		return false
	}
}

func pathMatchesIntent(file string, intent Intent) bool {
	p := strings.ToLower(file)
	if intent.TestOriented && (strings.Contains(p, "test") || strings.Contains(p, "spec")) {
		return true
	}
	if intent.WantsAPI && (strings.Contains(p, "api") || strings.Contains(p, "route") || strings.Contains(p, "handler")) {
		return true
	}
	if intent.WantsAuth && (strings.Contains(p, "auth") || strings.Contains(p, "login")) {
		return true
	}
	return false
}

// inPenalizedDir reports whether file sits under a test, spec, or vendor
// directory; such hits are penalized when the query is not test-oriented.
func inPenalizedDir(file string) bool {
	p := strings.ToLower(file)
	for _, dir := range []string{"/test/", "/tests/", "/spec/", "/specs/", "/vendor/", "/node_modules/"} {
		if strings.Contains(p, dir) {
			return true
		}
	}
	base := p[strings.LastIndex(p, "/")+1:]
	return strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.go") ||
		strings.Contains(base, ".test.") || strings.Contains(base, ".spec.")
}

type shape int

const (
	shapeOther shape = iota
	shapeDefinition
	shapeImportOrUsage
)

// codeShape distinguishes a definition (def/class/function header at the
// start of the snippet) from an import or bare usage site. Definitions get
// twice the usage weight, so a query that matches both ranks the
// definition first.
func codeShape(code string) shape {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return shapeOther
	}
	if definitionProbe.MatchString(trimmed) {
		return shapeDefinition
	}
	if importProbe.MatchString(trimmed) {
		return shapeImportOrUsage
	}
	return shapeOther
}
