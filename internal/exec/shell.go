package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"golang.org/x/sync/semaphore"

	"mqleval/internal/domain"
	"mqleval/internal/mql"
)

// Shell is the fallback strategy: it evaluates raw query text through a
// mongosh subprocess so shapes the fast path cannot parse still run.
type Shell struct {
	path string // mongosh executable
	uri  string // connection string
	sem  *semaphore.Weighted
}

// NewShell creates a shell runner. maxProcs bounds concurrent mongosh
// subprocesses.
func NewShell(path, uri string, maxProcs int64) *Shell {
	if maxProcs < 1 {
		maxProcs = 1
	}
	return &Shell{path: path, uri: uri, sem: semaphore.NewWeighted(maxProcs)}
}

// Extended-type literals printed by the shell, normalized into plain
// JSON-compatible tokens before decoding. Numeric wrappers become bare
// numbers; the rest become string tokens with the inner quotes escaped,
// matching what the native path renders for the same values. The
// alternation lists ISODate before Date so the longer literal wins.
var (
	numberWrapperRe = regexp.MustCompile(`\b(?:NumberLong|NumberInt|NumberDecimal|Long|Int32|Decimal128)\(([^)]*)\)`)
	quotedTokenRe   = regexp.MustCompile(`\b(ObjectId|ISODate|Timestamp|BinData|DBRef|UUID|Date)\(([^)]*)\)`)
)

// FormatQuery prepares raw text for shell evaluation: trailing
// semicolons are stripped and a to-array terminal call is appended so
// cursors materialize before printing.
func FormatQuery(query string) string {
	q := strings.TrimSpace(query)
	q = strings.TrimRight(q, ";")
	if (strings.Contains(q, ".find(") || strings.Contains(q, ".aggregate(")) &&
		!strings.Contains(q, ".toArray()") {
		q += ".toArray()"
	}
	return q
}

// NormalizeExtendedJSON rewrites shell-native extended-type literals
// into plain JSON-compatible tokens via literal-pattern substitution.
func NormalizeExtendedJSON(output string) string {
	output = strings.ReplaceAll(output, `"""`, `"`)
	output = numberWrapperRe.ReplaceAllStringFunc(output, func(m string) string {
		inner := m[strings.IndexByte(m, '(')+1 : len(m)-1]
		return strings.Trim(inner, `"'`)
	})
	output = quotedTokenRe.ReplaceAllStringFunc(output, func(m string) string {
		open := strings.IndexByte(m, '(')
		name, inner := m[:open], m[open+1:len(m)-1]
		return `"` + name + `(` + strings.ReplaceAll(inner, `"`, `\"`) + `)"`
	})
	return output
}

// Run evaluates raw query text in a mongosh subprocess scoped to dbID
// and decodes the printed result.
func (s *Shell) Run(ctx context.Context, dbID, query string) ([]mql.Value, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, domain.ErrTimeout("waiting for shell slot: %v", err)
	}
	defer s.sem.Release(1)

	script := fmt.Sprintf(`
		try {
			db = connect(%q).getSiblingDB(%q);
			result = %s;
			printjson(result);
		} catch (e) {
			print("QUERY_ERROR: " + e.message);
			quit(1);
		}
	`, s.uri, dbID, FormatQuery(query))

	cmd := exec.CommandContext(ctx, s.path, "--quiet", "--eval", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, domain.ErrTimeout("shell execution exceeded deadline")
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, domain.ErrExecution("spawn %s: %v", s.path, err)
		}
	}

	output := strings.TrimSpace(stdout.String())
	if strings.Contains(output, "QUERY_ERROR") {
		return nil, domain.ErrExecution("shell query failed: %s", firstLine(output))
	}
	if output == "" {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, domain.ErrExecution("shell produced no result: %s", firstLine(msg))
		}
		return nil, nil
	}

	return DecodeShellOutput(output)
}

// DecodeShellOutput normalizes and permissively decodes printed shell
// output into a document sequence.
func DecodeShellOutput(output string) ([]mql.Value, error) {
	normalized := NormalizeExtendedJSON(output)
	v, err := mql.DecodeValue(normalized)
	if err != nil {
		return nil, domain.ErrExecution("decode shell output: %v", err)
	}
	switch t := v.(type) {
	case *mql.Array:
		return t.Elements, nil
	default:
		return []mql.Value{t}, nil
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
