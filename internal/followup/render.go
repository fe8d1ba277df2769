package followup

import (
	"regexp"
	"strconv"

	"github.com/mentorhub/crm-followup/internal/leads"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Render substitutes the recognized placeholders in a template body with the
// lead's data. Unknown placeholders are left untouched so a malformed template
// still produces a usable message instead of failing the batch.
//
// Recognized placeholders: {{nome}} (first name), {{produto}} (product label),
// {{dias}} (days since last activity).
func Render(body string, lead *leads.Lead, daysSince int) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		switch key {
		case "nome":
			if name := lead.FirstName(); name != "" {
				return name
			}
			return "there"
		case "produto":
			return productLabel(lead.ProductType)
		case "dias":
			return strconv.Itoa(daysSince)
		default:
			return match
		}
	})
}

func productLabel(p leads.ProductType) string {
	switch p {
	case leads.ProductMentoring:
		return "mentoring program"
	case leads.ProductConsulting:
		return "consulting package"
	case leads.ProductCourse:
		return "course"
	default:
		return "program"
	}
}
