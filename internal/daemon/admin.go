package daemon

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codesearch/ragex/internal/project"
	"github.com/codesearch/ragex/internal/ragexerr"
	"github.com/codesearch/ragex/internal/store"
)

// Admin commands operate on the per-user data root rather than a single
// project, so they can also be served by a short-lived process without a
// workspace.

// ProjectEntry is one row of the `ls` listing.
type ProjectEntry struct {
	ProjectID     string `json:"project_id"`
	ProjectName   string `json:"project_name"`
	WorkspacePath string `json:"workspace_path"`
	Model         string `json:"model,omitempty"`
	FilesIndexed  int    `json:"files_indexed"`
	LastIndexedAt string `json:"last_indexed_at,omitempty"`
	SizeBytes     int64  `json:"size_bytes,omitempty"`
}

// HandleLs lists projects belonging to userID under dataRoot, optionally
// filtered by a glob over project id, name, or workspace path (a plain
// substring of any of them also matches). Flags: -l/--long (extra
// columns), -a/--all (every user's projects), -h/--human-readable (sizes).
// An empty match set is a "no matches" failure, exit code 2.
func HandleLs(dataRoot, userID string, args []string) Response {
	var glob string
	long, all, human := false, false, false
	for _, arg := range args {
		switch arg {
		case "-l", "--long":
			long = true
		case "-a", "--all":
			all = true
		case "-h", "--human-readable":
			human = true
		default:
			if strings.HasPrefix(arg, "-") {
				return Fail(ragexerr.InvalidInput(fmt.Sprintf("unknown ls flag %q", arg), nil))
			}
			glob = arg
		}
	}

	entries, err := listProjects(dataRoot, userID, all, glob)
	if err != nil {
		return Fail(err)
	}
	if len(entries) == 0 {
		if glob != "" {
			return Fail(ragexerr.NotFound(fmt.Sprintf("no project matches %q", glob)))
		}
		return Fail(ragexerr.NotFound("no projects indexed for this user"))
	}

	uniqueProjectNames(entries)
	if long {
		for i := range entries {
			entries[i].SizeBytes = projectSize(dataRoot, entries[i].ProjectID)
		}
		return OK(formatLsLong(entries, human), entries)
	}
	return OK(formatLsBasic(entries), entries)
}

// formatLsBasic renders the PROJECT NAME / PROJECT ID / PATH columns with
// an underlined header.
func formatLsBasic(entries []ProjectEntry) string {
	nameWidth := lsNameWidth(entries)

	var b strings.Builder
	header := fmt.Sprintf("%-*s  %-*s  PATH", nameWidth, "PROJECT NAME", lsIDWidth, "PROJECT ID")
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("-", len(header)) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-*s  %-*s  %s\n", nameWidth, e.ProjectName, lsIDWidth, e.ProjectID, e.WorkspacePath)
	}
	return b.String()
}

// formatLsLong adds MODEL, INDEXED, FILES, and SIZE columns.
func formatLsLong(entries []ProjectEntry, human bool) string {
	nameWidth := lsNameWidth(entries)

	var b strings.Builder
	header := fmt.Sprintf("%-*s  %-*s  %-32s  %-7s  %6s  %10s  PATH",
		nameWidth, "PROJECT NAME", lsIDWidth, "PROJECT ID", "MODEL", "INDEXED", "FILES", "SIZE")
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("-", len(header)) + "\n")
	for _, e := range entries {
		indexed := "no"
		if e.LastIndexedAt != "" {
			indexed = "yes"
		}
		size := fmt.Sprintf("%d", e.SizeBytes)
		if human {
			size = store.FormatBytes(e.SizeBytes)
		}
		fmt.Fprintf(&b, "%-*s  %-*s  %-32s  %-7s  %6d  %10s  %s\n",
			nameWidth, e.ProjectName, lsIDWidth, e.ProjectID, e.Model, indexed, e.FilesIndexed, size, e.WorkspacePath)
	}
	return b.String()
}

const lsIDWidth = 30

func lsNameWidth(entries []ProjectEntry) int {
	w := 20
	for _, e := range entries {
		if len(e.ProjectName) > w {
			w = len(e.ProjectName)
		}
	}
	return w
}

// uniqueProjectNames suffixes duplicate project names (_001, _002, ...) so
// the listing is unambiguous when two workspaces share a base name; the
// first occurrence keeps the bare name.
func uniqueProjectNames(entries []ProjectEntry) {
	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[e.ProjectName]++
	}
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		if counts[e.ProjectName] <= 1 {
			continue
		}
		n := seen[e.ProjectName]
		seen[e.ProjectName] = n + 1
		if n > 0 {
			entries[i].ProjectName = fmt.Sprintf("%s_%03d", e.ProjectName, n)
		}
	}
}

// projectSize sums the on-disk size of one project's data directory.
func projectSize(dataRoot, projectID string) int64 {
	var total int64
	root := filepath.Join(dataRoot, "projects", projectID)
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// HandleRm deletes the data directories of projects matching the
// identifier or glob. Exit code 2 when nothing matches.
func HandleRm(dataRoot, userID string, args []string) Response {
	var pattern string
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return Fail(ragexerr.InvalidInput(fmt.Sprintf("unknown rm flag %q", arg), nil))
		}
		pattern = arg
	}
	if pattern == "" {
		return Fail(ragexerr.InvalidInput("rm requires a project identifier or glob", nil))
	}

	entries, err := listProjects(dataRoot, userID, false, pattern)
	if err != nil {
		return Fail(err)
	}
	if len(entries) == 0 {
		return Fail(ragexerr.NotFound(fmt.Sprintf("no project matches %q", pattern)))
	}

	var removed []string
	for _, e := range entries {
		dir := filepath.Join(dataRoot, "projects", e.ProjectID)
		if err := os.RemoveAll(dir); err != nil {
			return Fail(ragexerr.IOError(fmt.Sprintf("remove project %s", e.ProjectID), err))
		}
		removed = append(removed, e.ProjectID)
	}
	return OK(fmt.Sprintf("removed %d project(s): %s\n", len(removed), strings.Join(removed, ", ")), removed)
}

// HandleRegister prints the shell command that wires ragex into the named
// target's tool configuration; unregister prints the inverse. The target
// is required, and `--help` describes the integration for that target.
func HandleRegister(command string, args []string) Response {
	var target string
	var help bool
	for _, arg := range args {
		if arg == "--help" {
			help = true
			continue
		}
		target = arg
	}
	if target == "" {
		return Fail(ragexerr.InvalidInput("registration target required (e.g., claude)", nil))
	}
	if target != "claude" {
		return Fail(ragexerr.InvalidInput(fmt.Sprintf("unknown registration target %q", target), nil))
	}

	if help {
		return OK(`Usage: ragex `+command+` claude [--help]

Prints the shell command that adds (or removes) ragex as a tool for the
claude CLI. Run the printed command yourself, or pipe it to a shell:

  ragex `+command+` claude | sh
`, nil)
	}
	if command == CmdUnregister {
		return OK("claude mcp remove ragex\n", nil)
	}
	return OK("claude mcp add ragex -- ragex daemon\n", nil)
}

// listProjects scans dataRoot/projects, reading each project_info.json.
// Directories without metadata still appear (id only) so rm can clean up
// half-created projects.
func listProjects(dataRoot, userID string, all bool, glob string) ([]ProjectEntry, error) {
	projectsDir := filepath.Join(dataRoot, "projects")
	dirs, err := os.ReadDir(projectsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ragexerr.IOError("read projects directory", err)
	}

	prefix := "ragex_" + userID + "_"
	var entries []ProjectEntry
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		id := dir.Name()
		if !all && !strings.HasPrefix(id, prefix) {
			continue
		}

		entry := ProjectEntry{ProjectID: id}
		metaPath := filepath.Join(projectsDir, id, "project_info.json")
		if data, err := os.ReadFile(metaPath); err == nil {
			var meta project.Metadata
			if err := json.Unmarshal(data, &meta); err == nil {
				entry.ProjectName = meta.ProjectName
				entry.WorkspacePath = meta.WorkspacePath
				entry.Model = meta.EmbeddingModelName
				entry.FilesIndexed = meta.FilesIndexed
				if !meta.LastIndexedAt.IsZero() {
					entry.LastIndexedAt = meta.LastIndexedAt.Format("2006-01-02 15:04:05")
				}
			}
		}

		if glob != "" && !matchesGlob(glob, entry) {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ProjectID < entries[j].ProjectID })
	return entries, nil
}

func matchesGlob(glob string, e ProjectEntry) bool {
	for _, candidate := range []string{e.ProjectID, e.ProjectName, e.WorkspacePath} {
		if candidate == "" {
			continue
		}
		if ok, err := filepath.Match(glob, candidate); err == nil && ok {
			return true
		}
		if strings.Contains(candidate, glob) {
			return true
		}
	}
	return false
}
