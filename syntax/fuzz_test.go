// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

import "testing"

// FuzzParse feeds arbitrary bytes through the parser under every
// language variant, checking only that it never panics. There's no
// printer in this generation to round-trip through, unlike the
// upstream fuzzer this is adapted from.
func FuzzParse(f *testing.F) {
	f.Add([]byte("echo foo | grep bar && exit 1"))
	f.Add([]byte("for i in 1 2 3; do echo $i; done"))
	f.Add([]byte("case $x in a) foo;; *) bar;; esac"))
	f.Add([]byte("${foo:-bar} $((1+2)) <<EOF\nheredoc\nEOF"))
	f.Add([]byte("func() { echo in function; }"))

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, lang := range []LangVariant{LangBash, LangPOSIX, LangMirBSDKorn} {
			p := NewParser(Variant(lang), KeepComments(true))
			_, _ = p.ParseBytes(data, "")
		}
	})
}
