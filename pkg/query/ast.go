// Package query parses variant queries such as
//
//	B.1.1.7* & !S:E484K | (23403G & NEXTSTRAIN:21J)
//
// into an immutable expression tree.
package query

import (
	"fmt"
	"strconv"
)

// Expr is a node of a parsed variant query. The set of node types is
// closed; evaluators switch over the concrete types below.
type Expr interface {
	isExpr()
	String() string
}

// Conjunction matches samples matched by both sides.
type Conjunction struct {
	Left, Right Expr
}

// Disjunction matches samples matched by either side.
type Disjunction struct {
	Left, Right Expr
}

// Negation matches samples not matched by Expr.
type Negation struct {
	Expr Expr
}

type PangoLineageQuery struct {
	Lineage            string
	IncludeSublineages bool
}

type NextstrainCladeQuery struct {
	Clade string
}

type GisaidCladeQuery struct {
	Clade string
}

// AminoAcidMutationQuery has Residue 0 when any non-reference residue should match.
type AminoAcidMutationQuery struct {
	Gene     string
	Position int
	Residue  byte
}

// NucleotideMutationQuery has Base 0 when any non-reference base should match.
type NucleotideMutationQuery struct {
	Position int
	Base     byte
}

func (Conjunction) isExpr()             {}
func (Disjunction) isExpr()             {}
func (Negation) isExpr()                {}
func (PangoLineageQuery) isExpr()       {}
func (NextstrainCladeQuery) isExpr()    {}
func (GisaidCladeQuery) isExpr()        {}
func (AminoAcidMutationQuery) isExpr()  {}
func (NucleotideMutationQuery) isExpr() {}

func (e Conjunction) String() string {
	return "(" + e.Left.String() + " & " + e.Right.String() + ")"
}

func (e Disjunction) String() string {
	return "(" + e.Left.String() + " | " + e.Right.String() + ")"
}

func (e Negation) String() string {
	return "!" + e.Expr.String()
}

func (e PangoLineageQuery) String() string {
	if e.IncludeSublineages {
		return e.Lineage + "*"
	}
	return e.Lineage
}

func (e NextstrainCladeQuery) String() string {
	return "NEXTSTRAIN:" + e.Clade
}

func (e GisaidCladeQuery) String() string {
	return "GISAID:" + e.Clade
}

func (e AminoAcidMutationQuery) String() string {
	s := fmt.Sprintf("%s:%d", e.Gene, e.Position)
	if e.Residue != 0 {
		s += string(e.Residue)
	}
	return s
}

func (e NucleotideMutationQuery) String() string {
	s := strconv.Itoa(e.Position)
	if e.Base != 0 {
		s += string(e.Base)
	}
	return s
}
