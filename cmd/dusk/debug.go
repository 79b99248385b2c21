// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package main

import (
	"fmt"
	"io"
	"reflect"

	"github.com/duskshell/dusk/syntax"
)

// debugAST dumps file's node tree to w, one node per line in the order
// Walk visits them, for --debug-ast.
func debugAST(w io.Writer, file *syntax.File) {
	syntax.Walk(syntax.WalkFunc(func(node syntax.Node) bool {
		pos := node.Pos()
		fmt.Fprintf(w, "%s @ %s\n", reflect.TypeOf(node).Elem().Name(), file.Position(pos))
		return true
	}), file)
}

// debugTokens dumps the position and value of every literal in file to w,
// for --debug-tokens. The parser doesn't expose a standalone token
// stream separate from the AST it builds, so this walks the same tree
// debugAST does, reporting just the leaf literal tokens.
func debugTokens(w io.Writer, file *syntax.File) {
	syntax.Walk(syntax.WalkFunc(func(node syntax.Node) bool {
		lit, ok := node.(*syntax.Lit)
		if !ok || lit == nil {
			return true
		}
		fmt.Fprintf(w, "%s\t%q\n", file.Position(lit.Pos()), lit.Value)
		return true
	}), file)
}
