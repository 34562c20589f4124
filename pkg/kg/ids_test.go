package kg

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "case folded",
			in:   "Skills Cloud",
			want: "skills cloud",
		},
		{
			name: "upper casing resolves to same key",
			in:   "SKILLS CLOUD",
			want: "skills cloud",
		},
		{
			name: "punctuation stripped",
			in:   "Workday, Inc.",
			want: "workday inc",
		},
		{
			name: "hyphen treated as separator",
			in:   "machine-learning",
			want: "machine learning",
		},
		{
			name: "whitespace collapsed",
			in:   "  AI   Platform \t",
			want: "ai platform",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDeriveIDDeterminism(t *testing.T) {
	a := EvidenceID("doc-1", 10, 42)
	b := EvidenceID("doc-1", 10, 42)
	if a != b {
		t.Errorf("identical inputs must derive identical IDs: %s != %s", a, b)
	}
	if !strings.HasPrefix(a, "ev_") {
		t.Errorf("evidence ID %q missing prefix", a)
	}

	if EvidenceID("doc-1", 10, 43) == a {
		t.Error("distinct spans must derive distinct IDs")
	}

	// Boundary ambiguity: (1,23) and (12,3) must not collide.
	if EvidenceID("d", 1, 23) == EvidenceID("d", 12, 3) {
		t.Error("part boundaries must be unambiguous")
	}
}

func TestEntityIDUsesNormalizedName(t *testing.T) {
	a := EntityID(EntityProduct, "Skills Cloud")
	b := EntityID(EntityProduct, "SKILLS  CLOUD")
	if a != b {
		t.Errorf("surface casings must resolve to one entity: %s != %s", a, b)
	}

	if EntityID(EntityCapability, "Skills Cloud") == a {
		t.Error("same name under a different type must be a different entity")
	}
}
