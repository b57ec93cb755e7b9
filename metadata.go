package sessionkit

import (
	"regexp"
	"strings"
)

// wordsPerMinute is the reading speed used for the reading-time estimate.
const wordsPerMinute = 200

// tagPattern matches markup tags so they do not count as words. The content
// stays opaque otherwise: tags are only discarded, never interpreted.
var tagPattern = regexp.MustCompile(`<[^>]*>`)

// CountWords returns the number of whitespace-separated words in the content
// payload, ignoring markup tags.
func CountWords(content string) int {
	stripped := tagPattern.ReplaceAllString(content, " ")
	return len(strings.Fields(stripped))
}

// ReadingTime returns the estimated reading time in minutes for the given
// word count: ceil(words / 200). Zero words read in zero minutes.
func ReadingTime(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

// ComputeMetadata derives the document statistics recorded on each flush.
func ComputeMetadata(content, lastEditor string) Metadata {
	words := CountWords(content)
	return Metadata{
		WordCount:   words,
		ReadingTime: ReadingTime(words),
		LastEditor:  lastEditor,
	}
}
