package pattern

import "github.com/bmatcuk/doublestar/v4"

// Match reports whether name matches pat under POSIX pathname-expansion
// rules, delegating the actual matching to doublestar so that "**"
// behaves as a recursive globstar with doublestar's own semantics.
// Regexp/HasMeta/QuoteMeta
// still back every non-pathname use of a pattern (case, [[ == ]],
// parameter-expansion operators), where there is no filesystem walk for
// doublestar to drive.
func Match(pat, name string) (bool, error) {
	return doublestar.Match(pat, name)
}

// Glob expands pat against the filesystem rooted at fsys, returning
// matches in lexical order. Used by the expander's pathname-expansion
// stage (spec §4.4) for any word containing glob metacharacters.
func Glob(fsys doublestar.GlobFS, pat string) ([]string, error) {
	return doublestar.Glob(fsys, pat)
}
