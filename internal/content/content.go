// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package content cleans model output before it is persisted.
package content

import (
	"errors"
	"regexp"
	"strings"
)

var (
	thinkingRe = regexp.MustCompile(`(?s)<thinking>.*?</thinking>`)
	blogRe     = regexp.MustCompile(`(?s)<blog>(.*?)</blog>`)
	thinkRe    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	docsRe     = regexp.MustCompile(`(?s)<docs>(.*?)</docs>`)
)

// Extract strips reasoning blocks and unwraps the payload tags of a
// generated page. Whitespace is kept as is.
func Extract(raw string) string {
	s := thinkingRe.ReplaceAllString(raw, "")
	if m := blogRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = thinkRe.ReplaceAllString(s, "")
	// The wrapper is replaced by its inner text; text around it stays.
	if loc := docsRe.FindStringSubmatchIndex(s); loc != nil {
		s = s[:loc[0]] + s[loc[2]:loc[3]] + s[loc[1]:]
	}
	return s
}

var (
	fenceRe   = regexp.MustCompile("(?s)```mermaid[ \t]*\r?\n(.*?)```")
	bracketRe = regexp.MustCompile(`\[[^\]\r\n]*\]`)
	parenRe   = regexp.MustCompile(`[()（）]`)
)

// RepairDiagrams removes parentheses inside square-bracket node labels of
// every mermaid block; Mermaid rejects them there. Text outside mermaid
// fences is untouched.
func RepairDiagrams(md string) string {
	return fenceRe.ReplaceAllStringFunc(md, func(block string) string {
		lines := strings.Split(block, "\n")
		for i, line := range lines {
			lines[i] = bracketRe.ReplaceAllStringFunc(line, func(label string) string {
				return parenRe.ReplaceAllString(label, "")
			})
		}
		return strings.Join(lines, "\n")
	})
}

// ExtractTagged returns the trimmed text inside <tag>...</tag>, or the whole
// trimmed input if the tag is absent.
func ExtractTagged(raw, tag string) string {
	re := regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(tag) + `>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
	if m := re.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?[ \t]*\r?\n(.*?)```")

// ErrNoJSON is returned when no JSON object or array can be found.
var ErrNoJSON = errors.New("no JSON document in model output")

// ExtractJSON returns the first JSON document in raw: a fenced block if
// present, otherwise the span from the first opening brace or bracket to
// the matching last closing one.
func ExtractJSON(raw string) (string, error) {
	s := raw
	if m := jsonFenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.TrimSpace(s)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}
