package utils

import (
	"regexp"
	"strings"
)

var nonSlug = regexp.MustCompile("[^a-z0-9]+")

// Slugify lowercases s and joins its alphanumeric runs with sep. Report
// names such as "fleet.summary" become "fleet_summary" with sep "_".
func Slugify(s, sep string) string {
	s = strings.ToLower(s)
	s = nonSlug.ReplaceAllString(s, sep)
	return strings.Trim(s, sep)
}
