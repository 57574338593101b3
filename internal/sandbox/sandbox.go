// Package sandbox implements path containment, shell command validation,
// and the network capability predicate.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrewfreeman/spectator/internal/capabilities"
)

// ErrPathEscape is returned when a path resolves outside the sandbox root,
// including via a symlink.
var ErrPathEscape = errors.New("sandbox: path escapes root")

// sandboxAlias is rewritten to the root before containment checks.
const sandboxAlias = "/sandbox"

// ResolveUnderRoot returns an absolute path strictly inside root, or
// ErrPathEscape if userPath is absolute (other than the /sandbox alias) or
// resolves outside root, including through a symlink along the way.
func ResolveUnderRoot(root, userPath string) (string, error) {
	clean := strings.TrimSpace(userPath)
	if clean == "" {
		return "", fmt.Errorf("sandbox: path is required")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("sandbox: resolve root: %w", err)
	}

	if clean == sandboxAlias {
		clean = "."
	} else if strings.HasPrefix(clean, sandboxAlias+"/") {
		clean = strings.TrimPrefix(clean, sandboxAlias+"/")
	} else if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: absolute path %q", ErrPathEscape, userPath)
	}

	target := filepath.Clean(filepath.Join(rootAbs, clean))
	rel, err := filepath.Rel(rootAbs, target)
	if err != nil {
		return "", fmt.Errorf("sandbox: resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, userPath)
	}

	// Reject escape through a symlink anywhere along the resolved path, even
	// when the path doesn't exist yet (fs.write_text creates new files): walk
	// up from the first existing ancestor.
	resolved, err := filepath.EvalSymlinks(firstExistingAncestor(target))
	if err != nil {
		return "", fmt.Errorf("sandbox: resolve symlinks: %w", err)
	}
	resolvedRootRel, err := filepath.Rel(rootAbs, resolved)
	if err != nil || resolvedRootRel == ".." || strings.HasPrefix(resolvedRootRel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q resolves outside root via symlink", ErrPathEscape, userPath)
	}

	return target, nil
}

func firstExistingAncestor(path string) string {
	current := path
	for {
		if _, err := os.Lstat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}

// DefaultShellAllowedPrefixes is the built-in shell.exec allowlist.
var DefaultShellAllowedPrefixes = []string{"ls", "cat", "echo", "pwd", "python", "pytest", "rg", "grep", "sed", "head", "tail"}

// DefaultShellDenySubstrings is the built-in shell.exec deny list.
var DefaultShellDenySubstrings = []string{"rm", "sudo", "chmod", "chown", "mkfs", "dd", ":(){", "curl", "wget"}

// ErrShellDenied is returned by ValidateShellCmd for any rejected command.
var ErrShellDenied = errors.New("sandbox: shell command denied")

// ValidateShellCmd rejects commands containing shell metacharacters outside
// quotes, tokenizes the remainder POSIX-style, and checks the first token
// against allowedPrefixes and every token against denySubstrings.
func ValidateShellCmd(cmd string, allowedPrefixes, denySubstrings []string) error {
	if strings.TrimSpace(cmd) == "" {
		return fmt.Errorf("%w: empty command", ErrShellDenied)
	}
	if err := checkMetacharacters(cmd); err != nil {
		return err
	}
	tokens, err := tokenize(cmd)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: empty command", ErrShellDenied)
	}

	allowed := false
	for _, prefix := range allowedPrefixes {
		if tokens[0] == prefix {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %q is not an allowed command", ErrShellDenied, tokens[0])
	}

	lowerDeny := make([]string, len(denySubstrings))
	for i, d := range denySubstrings {
		lowerDeny[i] = strings.ToLower(d)
	}
	for _, token := range tokens {
		lower := strings.ToLower(token)
		for _, deny := range lowerDeny {
			if lower == deny || strings.HasPrefix(lower, deny) {
				return fmt.Errorf("%w: token %q matches denied substring %q", ErrShellDenied, token, deny)
			}
		}
	}
	return nil
}

// checkMetacharacters rejects |, &, >, <, `, $, newline anywhere, and ;
// outside quotes.
func checkMetacharacters(cmd string) error {
	inSingle, inDouble := false, false
	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		switch c {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '|', '&', '>', '<', '`', '$', '\n':
			return fmt.Errorf("%w: disallowed metacharacter %q", ErrShellDenied, string(c))
		case ';':
			if !inSingle && !inDouble {
				return fmt.Errorf("%w: disallowed metacharacter \";\"", ErrShellDenied)
			}
		}
	}
	if inSingle || inDouble {
		return fmt.Errorf("%w: unterminated quote", ErrShellDenied)
	}
	return nil
}

// tokenize performs POSIX shell-word splitting: whitespace-separated tokens,
// with single and double quotes grouping a token (quotes are stripped from
// the resulting token, matching shlex's default behavior).
func tokenize(cmd string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inSingle, inDouble, haveToken := false, false, false

	flush := func() {
		if haveToken {
			tokens = append(tokens, current.String())
			current.Reset()
			haveToken = false
		}
	}

	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			haveToken = true
		case c == '"' && !inSingle:
			inDouble = !inDouble
			haveToken = true
		case (c == ' ' || c == '\t') && !inSingle && !inDouble:
			flush()
		default:
			current.WriteByte(c)
			haveToken = true
		}
	}
	if inSingle || inDouble {
		return nil, fmt.Errorf("%w: unterminated quote", ErrShellDenied)
	}
	flush()
	return tokens, nil
}

// ErrCapabilityDenied is returned by the caller's tool layer (not this
// package) when AllowsNet returns false; exported here for callers that
// want a typed sentinel to wrap into ToolResult.Error.
var ErrCapabilityDenied = errors.New("sandbox: capability denied")

// AllowsNet is a thin re-export of capabilities.Allows so callers only need
// to import one package when wiring the http.get tool.
func AllowsNet(granted []string, domain string, allowlist []string) bool {
	return capabilities.Allows(granted, domain, allowlist)
}
