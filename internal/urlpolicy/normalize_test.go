package urlpolicy

import "testing"

func TestNormalizeDropsTrackingParamsAndSortsQuery(t *testing.T) {
	got, err := Normalize("HTTP://Example.com:80/Docs/page?b=2&utm_source=x&a=1#frag", false)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	want := "http://example.com/Docs/page?a=1&b=2"
	if got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalizeKeepsAnchorWhenConfigured(t *testing.T) {
	got, err := Normalize("https://example.com/a#section", true)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if got != "https://example.com/a#section" {
		t.Fatalf("Normalize() = %q, want fragment preserved", got)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := "https://example.com/a/b/../c/?z=1&a=2"
	first, err := Normalize(raw, false)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	second, err := Normalize(first, false)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if first != second {
		t.Fatalf("Normalize not idempotent: %q != %q", first, second)
	}
}

func TestCollapseDotSegmentsPreservesTrailingSlash(t *testing.T) {
	got := collapseDotSegments("/a/b/../c/")
	if got != "/a/c/" {
		t.Fatalf("collapseDotSegments() = %q, want /a/c/", got)
	}
}

func TestHashIsStableAndFixedWidth(t *testing.T) {
	h1 := Hash("https://example.com/a")
	h2 := Hash("https://example.com/a")
	if h1 != h2 {
		t.Fatalf("Hash not stable: %q != %q", h1, h2)
	}
	if len(h1) != 16 {
		t.Fatalf("Hash() length = %d, want 16", len(h1))
	}
}
