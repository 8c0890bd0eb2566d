package core

import (
	"regexp"
	"strings"
)

// TranslateGlob compiles a path glob into a regular expression matched
// against whole keys. "*" and "?" never cross a path separator, "**"
// does, "[...]" character classes pass through with "!" negation.
func TranslateGlob(pattern string) (*regexp.Regexp, error) {
	segs := strings.Split(pattern, "/")
	var b strings.Builder
	b.WriteString("^")
	for idx, seg := range segs {
		last := idx == len(segs)-1
		if seg == "**" {
			if last {
				b.WriteString(".*")
			} else {
				b.WriteString("(?:.+/)?")
			}
			continue
		}
		translateSegment(&b, seg)
		if !last {
			b.WriteString("/")
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func translateSegment(b *strings.Builder, seg string) {
	for i := 0; i < len(seg); i++ {
		switch c := seg[i]; c {
		case '*':
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(seg[i:], ']')
			if end <= 1 {
				b.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			class := seg[i+1 : i+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
}

// GlobBase returns the longest wildcard-free key prefix of a pattern,
// cut at a path separator. It narrows backend listings before the
// pattern match is applied.
func GlobBase(pattern string) string {
	i := strings.IndexAny(pattern, "*?[")
	if i < 0 {
		return pattern
	}
	j := strings.LastIndex(pattern[:i], "/")
	if j < 0 {
		return ""
	}
	return pattern[:j]
}
