/*
 *    Copyright 2026 The Mercurio Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package topic implements MQTT topic name/filter validation, level
// matching (including + and # wildcards and the $-prefix exception), and
// the subscription trie used by the router to fan a PUBLISH out to every
// matching subscriber.
package topic

import "strings"

// ValidName reports whether name is a legal topic name for PUBLISH: a
// non-empty UTF-8 string with no wildcard characters.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, "+#")
}

// ValidFilter reports whether filter is a legal topic filter for
// SUBSCRIBE/UNSUBSCRIBE: + may appear only as an entire level, # may
// appear only as the last level.
func ValidFilter(filter string) bool {
	if filter == "" {
		return false
	}
	levels := strings.Split(filter, "/")
	for i, lvl := range levels {
		switch {
		case lvl == "+":
			continue
		case strings.Contains(lvl, "+"):
			return false
		case lvl == "#":
			if i != len(levels)-1 {
				return false
			}
		case strings.Contains(lvl, "#"):
			return false
		}
	}
	return true
}

// isSystem reports whether topic/filter's first level starts with '$'.
func isSystem(levels []string) bool {
	return len(levels) > 0 && strings.HasPrefix(levels[0], "$")
}

// Matches reports whether filter matches topic, honoring + (single
// level), # (this level and all deeper levels, including zero levels
// beyond its position), and the rule that a wildcard-leading filter does
// not match a $-prefixed topic unless the filter itself starts with $.
func Matches(filter, name string) bool {
	fLevels := strings.Split(filter, "/")
	nLevels := strings.Split(name, "/")

	if isSystem(nLevels) && !isSystem(fLevels) {
		return false
	}
	return matchLevels(fLevels, nLevels)
}

func matchLevels(f, n []string) bool {
	for i := 0; i < len(f); i++ {
		switch f[i] {
		case "#":
			return true // matches current level and everything deeper
		case "+":
			if i >= len(n) {
				return false
			}
		default:
			if i >= len(n) || f[i] != n[i] {
				return false
			}
		}
	}
	return len(f) == len(n)
}
