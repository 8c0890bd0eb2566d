package core

import "testing"

func TestTranslateGlob(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		match   bool
	}{
		{"*", "foo", true},
		{"*", "foo/bar", false},
		{"foo/*", "foo/qux", true},
		{"foo/*", "foo/bar/baz", false},
		{"foo/**", "foo/bar/baz", true},
		{"foo/**", "foo/qux", true},
		{"**/*.json", "a/b/c.json", true},
		{"**/*.json", "c.json", true},
		{"**/*.json", "a/b/c.txt", false},
		{"a/**/b", "a/b", true},
		{"a/**/b", "a/x/y/b", true},
		{"a/**/b", "a/x", false},
		{"fo?", "foo", true},
		{"fo?", "fo/", false},
		{"[ab]c", "ac", true},
		{"[!ab]c", "xc", true},
		{"[!ab]c", "ac", false},
		{"*.pdf", "doc.pdf", true},
		{"*.pdf", "doc.pdfx", false},
	}
	for _, tc := range cases {
		rx, err := TranslateGlob(tc.pattern)
		if err != nil {
			t.Fatalf("TranslateGlob(%q): %v", tc.pattern, err)
		}
		if got := rx.MatchString(tc.key); got != tc.match {
			t.Fatalf("pattern %q against %q = %v, want %v", tc.pattern, tc.key, got, tc.match)
		}
	}
}

func TestGlobBase(t *testing.T) {
	cases := []struct {
		pattern string
		want    string
	}{
		{"foo/bar/*.json", "foo/bar"},
		{"foo/**/baz", "foo"},
		{"*.json", ""},
		{"foo/bar", "foo/bar"},
		{"foo/b[ab]r", "foo"},
	}
	for _, tc := range cases {
		if got := GlobBase(tc.pattern); got != tc.want {
			t.Fatalf("GlobBase(%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}
