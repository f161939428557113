package intel

import (
	"regexp"
	"strings"

	"github.com/vigil-intel/vigil/pkg/common"
)

var cvePattern = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,7}`)

// FallbackEntities extracts what it can from the text without a model:
// CVE identifiers by pattern and coarse categories by keyword. Articles
// with no keyword signal get the generic "security" category so they are
// never entirely untagged.
func FallbackEntities(title, content string) common.EntitySet {
	text := title + " " + content
	lower := strings.ToLower(text)

	var categories []string
	if strings.Contains(lower, "ransomware") {
		categories = append(categories, "ransomware")
	}
	if strings.Contains(lower, "vulnerability") || strings.Contains(lower, "cve-") {
		categories = append(categories, "vulnerability")
	}
	if strings.Contains(lower, "breach") || strings.Contains(lower, "leak") {
		categories = append(categories, "breach")
	}
	if strings.Contains(lower, "malware") {
		categories = append(categories, "malware")
	}
	if strings.Contains(lower, "phishing") {
		categories = append(categories, "phishing")
	}
	if len(categories) == 0 {
		categories = []string{"security"}
	}

	return common.EntitySet{
		Vulnerabilities: normalize(cvePattern.FindAllString(text, -1), strings.ToUpper),
		Categories:      categories,
	}
}
