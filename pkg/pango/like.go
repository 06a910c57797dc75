package pango

import "strings"

// LikeEscape is the escape character used in generated patterns, as in
// LIKE ... ESCAPE '\'.
const LikeEscape = '\\'

// EscapeLike escapes the LIKE wildcards in a literal.
func EscapeLike(s string) string {
	if !strings.ContainsAny(s, `\%_`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '%', '_':
			b.WriteByte(LikeEscape)
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

type likeTok struct {
	c    byte
	kind byte // 'l'iteral, '%' any run, '_' any single
}

// Like is a compiled LIKE pattern with '\' as escape character. Matching is
// case sensitive; callers upper-case both sides.
type Like struct {
	toks []likeTok
}

func CompileLike(pattern string) Like {
	var toks []likeTok
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == LikeEscape && i+1 < len(pattern):
			i++
			toks = append(toks, likeTok{c: pattern[i], kind: 'l'})
		case c == '%':
			toks = append(toks, likeTok{kind: '%'})
		case c == '_':
			toks = append(toks, likeTok{kind: '_'})
		default:
			toks = append(toks, likeTok{c: c, kind: 'l'})
		}
	}
	return Like{toks: toks}
}

// Match uses the usual greedy wildcard walk, backtracking to the last '%'.
func (l Like) Match(s string) bool {
	p, i := 0, 0
	star, mark := -1, 0
	for i < len(s) {
		switch {
		case p < len(l.toks) && l.toks[p].kind == '%':
			star, mark = p, i
			p++
		case p < len(l.toks) && (l.toks[p].kind == '_' || l.toks[p].c == s[i]):
			p++
			i++
		case star >= 0:
			p = star + 1
			mark++
			i = mark
		default:
			return false
		}
	}
	for p < len(l.toks) && l.toks[p].kind == '%' {
		p++
	}
	return p == len(l.toks)
}

// MatchAny reports whether s matches at least one of the patterns.
func MatchAny(patterns []Like, s string) bool {
	for _, l := range patterns {
		if l.Match(s) {
			return true
		}
	}
	return false
}
