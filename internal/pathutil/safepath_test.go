package pathutil

import "testing"

func TestHasDotSegments(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"/blog/post", false},
		{"/blog/../etc", true},
		{"./blog", true},
		{"blog/./x", true},
		{"blog/a..b", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := HasDotSegments(tt.in); got != tt.want {
			t.Errorf("HasDotSegments(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidSlug(t *testing.T) {
	valid := []string{"about", "about-us", "a", "2024", "photo-2024"}
	for _, s := range valid {
		if !ValidSlug(s) {
			t.Errorf("ValidSlug(%q)=false, want true", s)
		}
	}
	invalid := []string{"", "About", "with space", "-leading", "trailing-", "under_score", "sla/sh", "dot.dot"}
	for _, s := range invalid {
		if ValidSlug(s) {
			t.Errorf("ValidSlug(%q)=true, want false", s)
		}
	}
}

func TestCheckID(t *testing.T) {
	valid := []string{"about", "blog/first-post", "photography/sunset/sunset.jpg"}
	for _, id := range valid {
		if err := CheckID(id); err != nil {
			t.Errorf("CheckID(%q) unexpected error: %v", id, err)
		}
	}
	invalid := []string{"", "/about", "about/", "a//b", "../etc", "blog/../x", "blog\\x", "Blog"}
	for _, id := range invalid {
		if err := CheckID(id); err == nil {
			t.Errorf("CheckID(%q) expected error", id)
		}
	}
}

func TestCheckFilename(t *testing.T) {
	valid := []string{"sunset.jpg", "report-final.pdf", "IMG_2041.JPG", "notes.txt"}
	for _, n := range valid {
		if err := CheckFilename(n); err != nil {
			t.Errorf("CheckFilename(%q) unexpected error: %v", n, err)
		}
	}
	invalid := []string{"", ".", "..", ".hidden", "a/b.jpg", "a\\b.jpg", "bad name.jpg", "q\x00.jpg"}
	for _, n := range invalid {
		if err := CheckFilename(n); err == nil {
			t.Errorf("CheckFilename(%q) expected error", n)
		}
	}
}
