package archive

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// basenamePrefix marks patterns that should also match a file's basename alone.
const basenamePrefix = "**/"

// Excludes decides which relative paths are left out of an artifact.
//
// Patterns use fnmatch semantics: '*' matches any run of characters including
// '/', so "*.tmp" excludes temporary files at every depth. Braces and
// backslashes are literal characters. A pattern starting with "**/"
// additionally matches the basename on its own, which is what lets
// "**/.DS_Store" exclude a top-level .DS_Store.
type Excludes struct {
	patterns []excludePattern
}

type excludePattern struct {
	full     glob.Glob
	basename glob.Glob
}

// CompileExcludes compiles the exclude globs of one asset.
func CompileExcludes(patterns []string) (*Excludes, error) {
	ex := &Excludes{patterns: make([]excludePattern, 0, len(patterns))}
	for _, raw := range patterns {
		full, err := compileFnmatch(raw)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, raw, err)
		}
		p := excludePattern{full: full}
		if strings.HasPrefix(raw, basenamePrefix) {
			base, err := compileFnmatch(strings.TrimPrefix(raw, basenamePrefix))
			if err != nil {
				return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, raw, err)
			}
			p.basename = base
		}
		ex.patterns = append(ex.patterns, p)
	}
	return ex, nil
}

// Match reports whether the slash-separated relative path is excluded.
func (e *Excludes) Match(relPath string) bool {
	if e == nil {
		return false
	}
	for _, p := range e.patterns {
		if p.basename != nil && p.basename.Match(path.Base(relPath)) {
			return true
		}
		if p.full.Match(relPath) {
			return true
		}
	}
	return false
}

// fnmatchLiterals are glob metacharacters that fnmatch treats as plain text.
var fnmatchLiterals = strings.NewReplacer(`\`, `\\`, `{`, `\{`, `}`, `\}`)

// compileFnmatch compiles an fnmatch pattern. No separators are passed, so
// '*' and '?' also match '/'.
func compileFnmatch(pattern string) (glob.Glob, error) {
	return glob.Compile(fnmatchLiterals.Replace(pattern))
}
