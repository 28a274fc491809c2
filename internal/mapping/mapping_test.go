package mapping

import (
	"strings"
	"testing"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

func TestWorkplace(t *testing.T) {
	tests := []struct {
		jobType string
		want    string
		ok      bool
	}{
		{"remote", WorkplaceRemote, true},
		{"hybrid", WorkplaceHybrid, true},
		{"full_time", WorkplaceOnSite, true},
		{"part_time", WorkplaceOnSite, true},
		{"contract", WorkplaceOnSite, true},
		{"freelance", WorkplaceRemote, true},
		{"internship", WorkplaceOnSite, true},
		{"unknown_type", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.jobType, func(t *testing.T) {
			got, ok := Workplace(tt.jobType)
			if ok != tt.ok {
				t.Fatalf("Workplace(%q) ok = %v, want %v", tt.jobType, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("Workplace(%q) = %q, want %q", tt.jobType, got, tt.want)
			}
		})
	}
}

func TestEmployment(t *testing.T) {
	tests := []struct {
		jobType string
		want    string
		ok      bool
	}{
		{"full_time", EmploymentFullTime, true},
		{"part_time", EmploymentPartTime, true},
		{"contract", EmploymentContract, true},
		{"freelance", EmploymentContract, true},
		{"internship", EmploymentInternship, true},
		{"remote", EmploymentFullTime, true},
		{"hybrid", EmploymentFullTime, true},
		{"gig", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.jobType, func(t *testing.T) {
			got, ok := Employment(tt.jobType)
			if ok != tt.ok {
				t.Fatalf("Employment(%q) ok = %v, want %v", tt.jobType, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("Employment(%q) = %q, want %q", tt.jobType, got, tt.want)
			}
		})
	}
}

func TestFormatDescription_SectionOrder(t *testing.T) {
	job := &domain.Job{
		Description:      "Build things.",
		Responsibilities: "- ship\n- review",
		Requirements:     "Go experience",
		NiceToHave:       "Postgres",
		SalaryRange:      "$100k-$140k",
		Location:         "Berlin, Germany",
		CategoryName:     "Engineering",
		Skills:           []string{"Go", "SQL"},
	}

	html := FormatDescription(job)

	headings := []string{
		"About the Role",
		"Category",
		"Key Responsibilities",
		"Requirements",
		"Nice to Have",
		"Required Skills",
		"Compensation",
		"Location",
	}

	last := -1
	for _, h := range headings {
		idx := strings.Index(html, h)
		if idx < 0 {
			t.Fatalf("missing section %q in %s", h, html)
		}
		if idx < last {
			t.Errorf("section %q out of order", h)
		}
		last = idx
	}
}

func TestFormatDescription_SkipsEmptySections(t *testing.T) {
	job := &domain.Job{
		Description:      "Short role.",
		Responsibilities: "Do the work",
		Requirements:     "None",
		Location:         "Remote",
	}

	html := FormatDescription(job)

	for _, absent := range []string{"Nice to Have", "Compensation", "Category", "Required Skills"} {
		if strings.Contains(html, absent) {
			t.Errorf("empty section %q should not be rendered", absent)
		}
	}
	if !strings.Contains(html, "<h2>About the Role</h2><p>Short role.</p>") {
		t.Errorf("description section missing: %s", html)
	}
}

func TestTextToHTML_Bullets(t *testing.T) {
	got := textToHTML("Intro line\n- first\n- second\ntrailing")
	want := "<p>Intro line</p><ul><li>first</li><li>second</li></ul><p>trailing</p>"
	if got != want {
		t.Errorf("textToHTML:\n  got:  %s\n  want: %s", got, want)
	}
}

func TestTextToHTML_ListAtEnd(t *testing.T) {
	got := textToHTML("* only\n* bullets")
	want := "<ul><li>only</li><li>bullets</li></ul>"
	if got != want {
		t.Errorf("textToHTML:\n  got:  %s\n  want: %s", got, want)
	}
}
