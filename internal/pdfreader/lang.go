// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfreader

import "strings"

// languageMarkers maps case-sensitive file name markers to OCR language
// hints, in the order they are checked.
var languageMarkers = []struct {
	marker string
	langs  []string
}{
	{"EN", []string{"English"}},
	{"DE", []string{"German"}},
	{"FR", []string{"French"}},
	{"LU", []string{"English", "French", "German"}},
}

// inferLanguages derives OCR language hints from a file's base name, e.g.
// "report_LU.pdf" yields English, French and German. Duplicates are dropped,
// keeping the first occurrence. The result is empty when no marker matches.
func inferLanguages(name string) []string {
	var langs []string
	seen := make(map[string]bool)
	for _, m := range languageMarkers {
		if !strings.Contains(name, m.marker) {
			continue
		}
		for _, l := range m.langs {
			if !seen[l] {
				seen[l] = true
				langs = append(langs, l)
			}
		}
	}
	return langs
}
