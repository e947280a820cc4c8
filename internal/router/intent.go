// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import "regexp"

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwhat.*\b(my|current)\s*(location|address|position)\b`),
	regexp.MustCompile(`(?i)\bwhere\s+am\s+i\b`),
	regexp.MustCompile(`(?i)\bwhere\s+i('m| am)\b`),
	regexp.MustCompile(`(?i)\bmy\s+(current\s+)?(location|address|position)\b`),
	regexp.MustCompile(`(?i)\bcurrent\s+location\b`),
	regexp.MustCompile(`(?i)\bmy\s+address\b`),
}

// DetectLocationIntent reports whether text asks for the user's own location,
// which only the device can answer.
func DetectLocationIntent(text string) bool {
	for _, re := range locationPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
