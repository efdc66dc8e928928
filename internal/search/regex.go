package search

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/codesearch/ragex/internal/config"
	"github.com/codesearch/ragex/internal/ragexerr"
)

// maxScanLineBytes bounds a single scanned line; longer lines are
// truncated rather than failing the file.
const maxScanLineBytes = 1 << 20

// regexMatcher is the in-process literal matcher backing regex and symbol
// modes. The contract permits either shelling out to an external tool or an
// in-process engine meeting the same per-match contract
// {path, line_number, line_text, column}; ragex uses the in-process engine
// so cancellation is a context, not a killed child.
type regexMatcher struct {
	root   string
	ignore IgnoreEngine
	cfg    config.RegexConfig
}

// validatePattern rejects unusable patterns early: empty patterns and
// patterns over the configured length are rejected before compilation.
func (m *regexMatcher) validatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return ragexerr.InvalidInput("empty regex pattern", nil)
	}
	maxLen := m.cfg.MaxPatternLen
	if maxLen <= 0 {
		maxLen = 500
	}
	if len(pattern) > maxLen {
		return ragexerr.InvalidInput(fmt.Sprintf("regex pattern exceeds %d characters", maxLen), nil)
	}
	return nil
}

// search walks the workspace and returns up to limit matches. The hard
// timeout (default 30s) is enforced with a derived context; on expiry the
// caller receives a timeout error and whatever ran so far is discarded
//.
func (m *regexMatcher) search(ctx context.Context, pattern string, limit int, caseSensitive, multiline bool) ([]LexicalHit, error) {
	if err := m.validatePattern(pattern); err != nil {
		return nil, err
	}

	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	if multiline {
		expr = "(?m)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, ragexerr.InvalidInput(fmt.Sprintf("regex will not compile: %v", err), err)
	}

	timeout := time.Duration(m.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if limit <= 0 || limit > m.maxResults() {
		limit = m.maxResults()
	}

	var hits []LexicalHit
	err = filepath.WalkDir(m.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		isDir := d.IsDir()
		if m.ignore != nil && path != m.root && m.ignore.ShouldIgnore(path, isDir) {
			if isDir {
				return filepath.SkipDir
			}
			return nil
		}
		if isDir || !d.Type().IsRegular() {
			return nil
		}

		fileHits, err := m.searchFile(ctx, path, re, limit-len(hits))
		if err != nil {
			return err
		}
		hits = append(hits, fileHits...)
		if len(hits) >= limit {
			return fs.SkipAll
		}
		return nil
	})
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ragexerr.Timeout("timeout")
	}
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return nil, ragexerr.IOError("walk workspace for regex search", err)
	}
	return hits, nil
}

func (m *regexMatcher) maxResults() int {
	if m.cfg.MaxResults > 0 {
		return m.cfg.MaxResults
	}
	return 200
}

// searchFile scans one file line by line, emitting a hit per matching line
// with a 1-based line number and the column of the first match.
func (m *regexMatcher) searchFile(ctx context.Context, path string, re *regexp.Regexp, remaining int) ([]LexicalHit, error) {
	if remaining <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil // vanished or unreadable mid-walk; skip
	}
	defer f.Close()

	var hits []LexicalHit
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxScanLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%256 == 0 {
			select {
			case <-ctx.Done():
				return hits, ctx.Err()
			default:
			}
		}
		line := scanner.Text()
		if isBinaryLine(line) {
			return nil, nil // binary content; treat whole file as unmatchable
		}
		loc := re.FindStringIndex(line)
		if loc == nil {
			continue
		}
		hits = append(hits, LexicalHit{
			File:       path,
			LineNumber: lineNo,
			Column:     loc[0] + 1,
			LineText:   line,
		})
		if len(hits) >= remaining {
			break
		}
	}
	return hits, nil
}

// isBinaryLine flags lines that contain a NUL byte.
func isBinaryLine(line string) bool {
	return strings.IndexByte(line, 0) >= 0
}
