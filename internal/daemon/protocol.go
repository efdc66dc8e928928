// Package daemon implements the long-lived project daemon: it owns one
// instance of every subsystem for a single project and serves the socket
// RPC protocol.
package daemon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/codesearch/ragex/internal/ragexerr"
	"github.com/codesearch/ragex/internal/search"
)

// RPC commands.
const (
	CmdStatus          = "status"
	CmdSearch          = "search"
	CmdIndex           = "index"
	CmdContinuousIndex = "start_continuous_index"
	CmdInit            = "init"
	CmdLs              = "ls"
	CmdRm              = "rm"
	CmdRegister        = "register"
	CmdUnregister      = "unregister"
	CmdPing            = "ping"
)

// MaxMessageBytes is the default cap on one framed request.
const MaxMessageBytes = 64 * 1024

// DefaultSocketPath is the well-known socket location inside the daemon's
// namespace when no per-project data directory overrides it.
const DefaultSocketPath = "/tmp/ragex.sock"

// Request is one framed request: UTF-8 JSON, one request per connection.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response is the single JSON object written back before the connection
// closes.
type Response struct {
	Success    bool   `json:"success"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	Returncode int    `json:"returncode"`
	Error      string `json:"error,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// OK builds a success response carrying optional human-readable stdout.
func OK(stdout string, data any) Response {
	return Response{Success: true, Stdout: stdout, Data: data}
}

// Fail translates an error into the wire shape, mapping a *ragexerr.Error's
// kind to the error string and the admin exit code.
func Fail(err error) Response {
	return Response{
		Success:    false,
		Error:      err.Error(),
		Returncode: ragexerr.ExitCode(err),
	}
}

// SearchArgs is the parsed form of the `search` command's argument list:
// the query plus optional flags.
type SearchArgs struct {
	Query         string
	Mode          search.Mode
	Limit         int
	MinSimilarity float64
	JSON          bool
	IndexDir      string
}

// ParseSearchArgs splits flags from query words. Unknown flags are an
// invalid_input error; everything that is not a flag joins the query.
func ParseSearchArgs(args []string) (SearchArgs, error) {
	out := SearchArgs{Mode: search.ModeAuto}
	var queryParts []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--regex":
			out.Mode = search.ModeRegex
		case arg == "--semantic":
			out.Mode = search.ModeSemantic
		case arg == "--symbol":
			out.Mode = search.ModeSymbol
		case arg == "--json":
			out.JSON = true
		case arg == "--limit":
			i++
			if i >= len(args) {
				return out, ragexerr.InvalidInput("--limit requires a value", nil)
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return out, ragexerr.InvalidInput(fmt.Sprintf("invalid --limit value %q", args[i]), err)
			}
			out.Limit = n
		case arg == "--min-similarity":
			i++
			if i >= len(args) {
				return out, ragexerr.InvalidInput("--min-similarity requires a value", nil)
			}
			f, err := strconv.ParseFloat(args[i], 64)
			if err != nil {
				return out, ragexerr.InvalidInput(fmt.Sprintf("invalid --min-similarity value %q", args[i]), err)
			}
			out.MinSimilarity = f
		case arg == "--index-dir":
			i++
			if i >= len(args) {
				return out, ragexerr.InvalidInput("--index-dir requires a value", nil)
			}
			out.IndexDir = args[i]
		case strings.HasPrefix(arg, "--"):
			return out, ragexerr.InvalidInput(fmt.Sprintf("unknown search flag %q", arg), nil)
		default:
			queryParts = append(queryParts, arg)
		}
	}

	out.Query = strings.Join(queryParts, " ")
	if out.Query == "" {
		return out, ragexerr.InvalidInput("search requires a query", nil)
	}
	return out, nil
}

// IndexArgs is the parsed form of the `index` command's argument list.
type IndexArgs struct {
	WorkspacePath string
	Force         bool
	Verbose       bool
	Stats         bool
}

// ParseIndexArgs accepts an optional workspace path plus flags.
func ParseIndexArgs(args []string) (IndexArgs, error) {
	var out IndexArgs
	for _, arg := range args {
		switch {
		case arg == "--force":
			out.Force = true
		case arg == "--verbose":
			out.Verbose = true
		case arg == "--stats":
			out.Stats = true
		case strings.HasPrefix(arg, "--"):
			return out, ragexerr.InvalidInput(fmt.Sprintf("unknown index flag %q", arg), nil)
		case out.WorkspacePath == "":
			out.WorkspacePath = arg
		default:
			return out, ragexerr.InvalidInput(fmt.Sprintf("unexpected index argument %q", arg), nil)
		}
	}
	return out, nil
}
