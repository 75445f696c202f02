package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// findSkills returns the terms that occur in content as whole words,
// ignoring case, in vocabulary order. A term is whole when the runes on
// either side of it are not letters, digits or underscores, which also
// works for terms that end in punctuation such as "C++".
func findSkills(content string, terms []term) []string {
	if content == "" || len(terms) == 0 {
		return nil
	}

	// Lowercase the content once for every term.
	lower := strings.ToLower(content)

	var found []string
	for _, t := range terms {
		if containsWord(lower, t.lower) {
			found = append(found, t.name)
		}
	}
	return found
}

func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)

		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(s) || !isWordRune(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// responsibilities returns bulleted items. A bullet is "-", "*" or "•" at
// the start of a line, or standing alone between spaces inside a line,
// which is how bullets survive once a description is collapsed onto one
// line.
func responsibilities(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, bullets(strings.TrimSpace(line))...)
	}
	return out
}

func bullets(line string) []string {
	var out []string
	add := func(item string) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	start := -1
	prevSpace := true
	for i, r := range line {
		size := utf8.RuneLen(r)
		if isBullet(r) && prevSpace && (i == 0 || followedBySpace(line, i+size)) {
			if start >= 0 {
				add(line[start:i])
			}
			start = i + size
			prevSpace = false
			continue
		}
		prevSpace = unicode.IsSpace(r)
	}
	if start >= 0 {
		add(line[start:])
	}
	return out
}

func isBullet(r rune) bool {
	return r == '-' || r == '*' || r == '•'
}

func followedBySpace(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}
