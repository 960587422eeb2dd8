package utils

import "testing"

func TestSplitAbs(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		expDir  string
		expBase string
	}{
		{name: "empty", in: "", expDir: "", expBase: ""},
		{name: "root", in: "/", expDir: "/", expBase: ""},
		{name: "double-slash-root", in: "//", expDir: "/", expBase: ""},
		{name: "single-segment", in: "/one", expDir: "/", expBase: "one"},
		{name: "two-segments", in: "/one/two", expDir: "/one", expBase: "two"},
		{name: "trailing-slash", in: "/one/two/", expDir: "/one", expBase: "two"},
		{name: "doubled-separator", in: "/one//two", expDir: "/one", expBase: "two"},
		{name: "relative", in: "one/two", expDir: "one", expBase: "two"},
		{name: "relative-single-segment", in: "one", expDir: "/", expBase: "one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, got1 := SplitAbs(tt.in)
			if got != tt.expDir {
				t.Errorf("SplitAbs() dir = %v, want %v", got, tt.expDir)
			}
			if got1 != tt.expBase {
				t.Errorf("SplitAbs() base = %v, want %v", got1, tt.expBase)
			}
		})
	}
}
