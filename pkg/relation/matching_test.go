package relation

import "testing"

func TestNormalize_OrderIndependent(t *testing.T) {
	ab := Normalize("a", "b")
	ba := Normalize("b", "a")
	if ab != ba {
		t.Fatalf("Normalize not symmetric: %+v vs %+v", ab, ba)
	}
	if ab.Low != "a" || ab.High != "b" {
		t.Fatalf("unexpected normalized pair: %+v", ab)
	}
}

func TestIsComparableGroundTruthSource(t *testing.T) {
	cases := map[string]bool{
		"human_verified_related":   true,
		"human_verified_unrelated": false,
		"human_uncertain":          false,
		"llm_judged":               true,
	}
	for source, want := range cases {
		if got := IsComparableGroundTruthSource(source); got != want {
			t.Errorf("IsComparableGroundTruthSource(%q) = %v, want %v", source, got, want)
		}
	}
}
