package fileid

import (
	"strings"
	"testing"
)

func TestSourceKey(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"identical", "/catalog/naruto.json", "/catalog/naruto.json", true},
		{"different files", "/catalog/naruto.json", "/catalog/bleach.json", false},
		{"trailing slash", "/catalog/dump", "/catalog/dump/", true},
		{"dot segment", "/catalog/dump", "/catalog/./dump", true},
		{"relative", "dump/a.json", "dump/a.json", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, kb := SourceKey(tt.a), SourceKey(tt.b)
			if (ka == kb) != tt.same {
				t.Errorf("SourceKey(%q)=%q SourceKey(%q)=%q, same=%v", tt.a, ka, tt.b, kb, tt.same)
			}
			if !strings.HasPrefix(ka, prefix) || len(ka) != len(prefix)+32 {
				t.Errorf("malformed key %q", ka)
			}
		})
	}
}
