package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/codesearch/ragex/internal/config"
	"github.com/codesearch/ragex/internal/embed"
	"github.com/codesearch/ragex/internal/ragexerr"
	"github.com/codesearch/ragex/internal/rerank"
	"github.com/codesearch/ragex/internal/store"
)

// IgnoreEngine is the subset of internal/ignore.Engine the regex backend
// needs to honor ignore patterns while walking the workspace.
type IgnoreEngine interface {
	ShouldIgnore(path string, isDir bool) bool
}

// VectorStore is the subset of internal/store.Store the service queries.
type VectorStore interface {
	Search(ctx context.Context, query []float32, k int, where *store.Where) ([]store.SearchHit, error)
	SearchSymbolsByName(ctx context.Context, name string, limit int) ([]store.SearchHit, error)
}

// Service dispatches queries to the semantic, symbol, or regex backend.
type Service struct {
	root     string
	store    VectorStore
	embedder embed.Embedder
	reranker *rerank.Reranker
	matcher  *regexMatcher
	log      *slog.Logger
}

// New builds the search service for one workspace.
func New(root string, vs VectorStore, embedder embed.Embedder, reranker *rerank.Reranker, ignore IgnoreEngine, regexCfg config.RegexConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		root:     root,
		store:    vs,
		embedder: embedder,
		reranker: reranker,
		matcher:  &regexMatcher{root: root, ignore: ignore, cfg: regexCfg},
		log:      log,
	}
}

// Search resolves the mode (auto-detecting if asked), runs the backend,
// and attaches guidance when the result set is empty.
func (s *Service) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	mode := opts.Mode
	if mode == "" || mode == ModeAuto {
		mode = DetectMode(query)
		s.log.Debug("auto-detected search mode", "query", query, "mode", mode)
	}
	opts.Limit = clampLimit(opts.Limit)

	resp := &Response{Query: query, Mode: mode}
	var err error
	switch mode {
	case ModeSemantic:
		resp.Semantic, err = s.searchSemantic(ctx, query, opts)
	case ModeSymbol:
		resp.Lexical, err = s.searchSymbol(ctx, query, opts)
	case ModeRegex:
		resp.Lexical, err = s.searchRegex(ctx, query, opts)
	default:
		return nil, ragexerr.InvalidInput(fmt.Sprintf("unknown search mode %q", mode), nil)
	}
	if err != nil {
		return nil, err
	}

	if resp.Total() == 0 {
		resp.Guidance = guidanceFor(mode)
	}
	return resp, nil
}

// searchSemantic embeds the query, fetches nearest neighbors, filters by
// minimum similarity, then reranks.
func (s *Service) searchSemantic(ctx context.Context, query string, opts Options) ([]SemanticHit, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, ragexerr.Internal("embed query", err)
	}

	var where *store.Where
	if opts.Language != "" {
		where = &store.Where{Language: opts.Language}
	}

	hits, err := s.store.Search(ctx, vec, opts.Limit, where)
	if err != nil {
		return nil, err
	}

	candidates := make([]rerank.Hit, 0, len(hits))
	for _, h := range hits {
		similarity := 1 - float64(h.Distance)
		if opts.MinSimilarity > 0 && similarity < opts.MinSimilarity {
			continue
		}
		candidates = append(candidates, rerank.Hit{
			Name:      h.Metadata.Name,
			Kind:      h.Metadata.Kind,
			File:      h.Metadata.File,
			Line:      h.Metadata.StartLine,
			Code:      h.Document,
			Signature: h.Metadata.Signature,
			Docstring: h.Metadata.Docstring,
			BaseScore: similarity,
		})
	}

	ranked := s.reranker.Rerank(query, candidates, opts.Limit)

	out := make([]SemanticHit, len(ranked))
	for i, r := range ranked {
		out[i] = SemanticHit{
			File:          r.File,
			Line:          r.Line,
			Kind:          r.Kind,
			Name:          r.Name,
			Code:          r.Code,
			Similarity:    r.BaseScore,
			BaseScore:     r.BaseScore,
			RerankedScore: r.Score,
			Rank:          i + 1,
		}
	}
	return out, nil
}

// searchSymbol tries the cheap metadata lookup first, then falls back to
// a word-bounded case-insensitive regex over the workspace. Either source
// can answer; ragex does both, preferring the indexed path.
func (s *Service) searchSymbol(ctx context.Context, query string, opts Options) ([]LexicalHit, error) {
	if s.store != nil {
		hits, err := s.store.SearchSymbolsByName(ctx, query, opts.Limit)
		if err == nil && len(hits) > 0 {
			out := make([]LexicalHit, 0, len(hits))
			for _, h := range hits {
				text := h.Metadata.Signature
				if text == "" {
					text = h.Metadata.Name
				}
				out = append(out, LexicalHit{
					File:       h.Metadata.File,
					LineNumber: h.Metadata.StartLine,
					Column:     1,
					LineText:   text,
				})
			}
			return out, nil
		}
		if err != nil {
			s.log.Debug("symbol metadata lookup failed, falling back to regex", "error", err)
		}
	}

	pattern := `\b` + regexp.QuoteMeta(query) + `\b`
	return s.matcher.search(ctx, pattern, opts.Limit, false, false)
}

// searchRegex runs the literal matcher with the query as the pattern.
func (s *Service) searchRegex(ctx context.Context, query string, opts Options) ([]LexicalHit, error) {
	return s.matcher.search(ctx, query, opts.Limit, opts.CaseSensitive, opts.Multiline)
}

func guidanceFor(mode Mode) string {
	switch mode {
	case ModeSemantic:
		return "No semantic matches. Try a shorter query, lower --min-similarity, or --regex for a literal search."
	case ModeSymbol:
		return "No symbol matches. Check the identifier spelling, or try semantic mode with a natural-language description."
	case ModeRegex:
		return "No regex matches. Verify the pattern, or try semantic mode for concept-level search."
	default:
		return "No matches."
	}
}
