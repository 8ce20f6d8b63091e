package app

import "strings"

var chunkSeparators = [][]rune{[]rune("\n\n"), []rune("\n"), []rune(". "), []rune(" ")}

// chunkText splits text into windows of at most size runes that overlap by
// overlap runes. Windows end on the coarsest separator found in their second half.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	runes := []rune(strings.TrimSpace(text))
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := breakPoint(runes[start:end], size/2); cut > 0 {
			end = start + cut
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint returns the rune offset just past the last separator that ends
// beyond minCut, or 0.
func breakPoint(window []rune, minCut int) int {
	for _, sep := range chunkSeparators {
		if i := lastIndex(window, sep); i >= 0 && i+len(sep) > minCut {
			return i + len(sep)
		}
	}
	return 0
}

func lastIndex(s, sep []rune) int {
outer:
	for i := len(s) - len(sep); i >= 0; i-- {
		for j := range sep {
			if s[i+j] != sep[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
