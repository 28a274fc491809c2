// Package mapping holds the static translation tables between local job
// attributes and the provider's enums, plus the listing description
// builder. Everything here is pure and loaded at compile time.
package mapping

import (
	"fmt"
	"strings"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

// Provider workplace enums.
const (
	WorkplaceOnSite = "ON_SITE"
	WorkplaceRemote = "REMOTE"
	WorkplaceHybrid = "HYBRID"
)

// Provider employment-status enums.
const (
	EmploymentFullTime   = "FULL_TIME"
	EmploymentPartTime   = "PART_TIME"
	EmploymentContract   = "CONTRACT"
	EmploymentInternship = "INTERNSHIP"
)

var workplaceByJobType = map[string]string{
	"remote":     WorkplaceRemote,
	"hybrid":     WorkplaceHybrid,
	"full_time":  WorkplaceOnSite,
	"part_time":  WorkplaceOnSite,
	"contract":   WorkplaceOnSite,
	"freelance":  WorkplaceRemote,
	"internship": WorkplaceOnSite,
}

var employmentByJobType = map[string]string{
	"full_time":  EmploymentFullTime,
	"part_time":  EmploymentPartTime,
	"contract":   EmploymentContract,
	"freelance":  EmploymentContract,
	"internship": EmploymentInternship,
	"remote":     EmploymentFullTime,
	"hybrid":     EmploymentFullTime,
}

// Workplace maps a local job type to the provider workplace enum.
// Unknown types return false; callers fail fast rather than defaulting.
func Workplace(jobType string) (string, bool) {
	w, ok := workplaceByJobType[jobType]
	return w, ok
}

// Employment maps a local job type to the provider employment status.
func Employment(jobType string) (string, bool) {
	e, ok := employmentByJobType[jobType]
	return e, ok
}

// FormatDescription renders the job's structured fields into the HTML
// listing description. Sections appear in a fixed order and a section is
// emitted only when its source field is non-empty.
func FormatDescription(job *domain.Job) string {
	var b strings.Builder

	section := func(tag, heading, body string) {
		if body == "" {
			return
		}
		fmt.Fprintf(&b, "<%s>%s</%s>", tag, heading, tag)
		b.WriteString(body)
	}

	section("h2", "About the Role", textToHTML(job.Description))
	if job.CategoryName != "" {
		section("h3", "Category", "<p>"+job.CategoryName+"</p>")
	}
	section("h3", "Key Responsibilities", textToHTML(job.Responsibilities))
	section("h3", "Requirements", textToHTML(job.Requirements))
	section("h3", "Nice to Have", textToHTML(job.NiceToHave))
	if len(job.Skills) > 0 {
		parts := make([]string, len(job.Skills))
		for i, s := range job.Skills {
			parts[i] = "<strong>" + s + "</strong>"
		}
		section("h3", "Required Skills", "<p>"+strings.Join(parts, ", ")+"</p>")
	}
	section("h3", "Compensation", textToHTML(job.SalaryRange))
	section("h3", "Location", textToHTML(job.Location))

	return b.String()
}

// textToHTML converts plain text to HTML paragraphs, turning bullet lines
// into list items.
func textToHTML(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	inList := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "•"):
			if !inList {
				b.WriteString("<ul>")
				inList = true
			}
			item := strings.TrimSpace(strings.TrimLeft(line, "-*•"))
			b.WriteString("<li>" + item + "</li>")
		default:
			if inList {
				b.WriteString("</ul>")
				inList = false
			}
			if line != "" {
				b.WriteString("<p>" + line + "</p>")
			}
		}
	}
	if inList {
		b.WriteString("</ul>")
	}

	return b.String()
}
