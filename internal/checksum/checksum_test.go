package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
	if Sum([]byte("* TODO a")) == Sum([]byte("* TODO b")) {
		t.Error("different contents should differ")
	}
}

func TestMatches(t *testing.T) {
	sum := Sum([]byte("#+TITLE: Issues\n"))
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"*", true},
		{ETag(sum), true},
		{`W/` + ETag(sum), true},
		{`"other", ` + ETag(sum), true},
		{sum, false},
		{`"other"`, false},
	}
	for _, tt := range tests {
		if got := Matches(tt.header, sum); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
