package archive

import "testing"

func TestExcludes_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"basename pattern at root", []string{"**/.DS_Store"}, ".DS_Store", true},
		{"basename pattern nested", []string{"**/.DS_Store"}, "a/b/.DS_Store", true},
		{"basename pattern other file", []string{"**/.DS_Store"}, "a/DS_Store", false},
		{"star crosses separators", []string{"*.tmp"}, "a/b/c.tmp", true},
		{"star at root", []string{"*.tmp"}, "c.tmp", true},
		{"directory prefix", []string{"cache/*"}, "cache/x/y.bin", true},
		{"directory prefix no match", []string{"cache/*"}, "other/cache.bin", false},
		{"question mark", []string{"v?.txt"}, "v1.txt", true},
		{"character class", []string{"[ab].txt"}, "c.txt", false},
		{"negated class", []string{"[!ab].txt"}, "c.txt", true},
		{"exact path", []string{"docs/README.md"}, "docs/README.md", true},
		{"no patterns", nil, "anything", false},
		{"second pattern matches", []string{"*.log", "**/thumbs.db"}, "img/thumbs.db", true},
		{"question mark crosses separators", []string{"a?b"}, "a/b", true},
		{"braces are literal", []string{"{a,b}.txt"}, "{a,b}.txt", true},
		{"braces are not alternation", []string{"{a,b}.txt"}, "a.txt", false},
		{"braces in basename pattern", []string{"**/{x}.bin"}, "d/{x}.bin", true},
		{"backslash is literal", []string{`dir\*`}, `dir\file`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := CompileExcludes(tt.patterns)
			if err != nil {
				t.Fatalf("CompileExcludes failed: %v", err)
			}
			if got := ex.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) with %v = %v, want %v", tt.path, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestExcludes_Nil(t *testing.T) {
	var ex *Excludes
	if ex.Match("x") {
		t.Error("nil Excludes must match nothing")
	}
}
