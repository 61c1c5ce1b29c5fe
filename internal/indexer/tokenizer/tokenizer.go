// Package tokenizer provides text tokenisation for the index and the query
// path. It lower-cases input and splits on every maximal run of bytes that
// are not ASCII letters. There is no stemming and no stop-word removal, so a
// query term matches an indexed term only if the two are spelled the same.
package tokenizer

import "iter"

// Tokens returns a lazy sequence over the lowercase tokens of text. The
// sequence is restartable: ranging over it again re-scans text from the
// start.
func Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i := 0; i <= len(text); i++ {
			if i < len(text) && isLetter(text[i]) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !yield(lower(text[start:i])) {
					return
				}
				start = -1
			}
		}
	}
}

// Tokenize collects Tokens(text) into a slice.
func Tokenize(text string) []string {
	tokens := make([]string, 0, len(text)/6)
	for token := range Tokens(text) {
		tokens = append(tokens, token)
	}
	return tokens
}

// Count returns the number of tokens in text without materialising them.
func Count(text string) int {
	n := 0
	inToken := false
	for i := 0; i < len(text); i++ {
		if isLetter(text[i]) {
			if !inToken {
				n++
				inToken = true
			}
			continue
		}
		inToken = false
	}
	return n
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// lower avoids an allocation when the token is already lowercase.
func lower(word string) string {
	for i := 0; i < len(word); i++ {
		if 'A' <= word[i] && word[i] <= 'Z' {
			b := []byte(word)
			for j := i; j < len(b); j++ {
				if 'A' <= b[j] && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return word
}
