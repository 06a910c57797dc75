package query

import (
	"regexp"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
	tokLeaf
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokAnd:
		return "'&'"
	case tokOr:
		return "'|'"
	case tokNot:
		return "'!'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	default:
		return "predicate"
	}
}

type token struct {
	kind tokenKind
	pos  int
	text string
	leaf Expr
}

var (
	nucMutationRe = regexp.MustCompile(`^[ACGT]?([0-9]+)([ACGTN-])?$`)
	aaMutationRe  = regexp.MustCompile(`^([A-Z0-9]+):[A-Z*]?([0-9]+)([A-Z*-])?$`)
	pangoRe       = regexp.MustCompile(`^([A-Z]{1,3}(?:\.[0-9]+)*)(\.?\*|\.\+)?$`)
	bareCladeRe   = regexp.MustCompile(`^[0-9]{2}[A-Z]$`)
	cladeNameRe   = regexp.MustCompile(`^[A-Z0-9.()/_-]+$`)
)

var (
	nextstrainPrefixes = []string{"NEXTSTRAINCLADE:", "NEXTSTRAIN:"}
	gisaidPrefixes     = []string{"GISAIDCLADE:", "GISAID:"}
)

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '&', '|', '!', '(', ')':
		return true
	}
	return false
}

// tokenize expects an upper-cased query.
func tokenize(q string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(q) {
		c := q[i]
		switch c {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		case '&':
			toks = append(toks, token{kind: tokAnd, pos: i, text: "&"})
			i++
			continue
		case '|':
			toks = append(toks, token{kind: tokOr, pos: i, text: "|"})
			i++
			continue
		case '!':
			toks = append(toks, token{kind: tokNot, pos: i, text: "!"})
			i++
			continue
		case '(':
			toks = append(toks, token{kind: tokLParen, pos: i, text: "("})
			i++
			continue
		case ')':
			toks = append(toks, token{kind: tokRParen, pos: i, text: ")"})
			i++
			continue
		}

		start := i
		for i < len(q) && !isDelimiter(q[i]) {
			i++
		}
		word := q[start:i]

		switch word {
		case "AND":
			toks = append(toks, token{kind: tokAnd, pos: start, text: word})
			continue
		case "OR":
			toks = append(toks, token{kind: tokOr, pos: start, text: word})
			continue
		}

		leaf, msg := classify(word)
		if leaf == nil {
			return nil, &MalformedQueryError{Query: q, Pos: start, Msg: msg}
		}
		toks = append(toks, token{kind: tokLeaf, pos: start, text: word, leaf: leaf})
	}
	toks = append(toks, token{kind: tokEOF, pos: len(q)})
	return toks, nil
}

func cutAnyPrefix(s string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return rest, true
		}
	}
	return "", false
}

// classify turns a word into a leaf predicate, or returns a reason why it can't.
func classify(word string) (Expr, string) {
	if clade, ok := cutAnyPrefix(word, nextstrainPrefixes); ok {
		if !cladeNameRe.MatchString(clade) {
			return nil, "invalid nextstrain clade " + strconv.Quote(clade)
		}
		return NextstrainCladeQuery{Clade: clade}, ""
	}
	if clade, ok := cutAnyPrefix(word, gisaidPrefixes); ok {
		if !cladeNameRe.MatchString(clade) {
			return nil, "invalid gisaid clade " + strconv.Quote(clade)
		}
		return GisaidCladeQuery{Clade: clade}, ""
	}

	if m := aaMutationRe.FindStringSubmatch(word); m != nil {
		pos, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, "position out of range in " + strconv.Quote(word)
		}
		q := AminoAcidMutationQuery{Gene: m[1], Position: pos}
		if m[3] != "" {
			q.Residue = m[3][0]
		}
		return q, ""
	}

	// 21J is a clade, 21A is base A at position 21
	if bareCladeRe.MatchString(word) && !strings.ContainsRune("ACGTN", rune(word[2])) {
		return NextstrainCladeQuery{Clade: word}, ""
	}

	if m := nucMutationRe.FindStringSubmatch(word); m != nil {
		pos, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, "position out of range in " + strconv.Quote(word)
		}
		q := NucleotideMutationQuery{Position: pos}
		if m[2] != "" {
			q.Base = m[2][0]
		}
		return q, ""
	}

	if m := pangoRe.FindStringSubmatch(word); m != nil {
		return PangoLineageQuery{Lineage: m[1], IncludeSublineages: m[2] != ""}, ""
	}

	return nil, "unrecognized token " + strconv.Quote(word)
}
