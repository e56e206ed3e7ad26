package channel

import (
	"strings"
	"unicode/utf8"
)

// DefaultMessageLimit is Discord's message length limit.
const DefaultMessageLimit = 2000

// Separator joins texts packed into one chunk.
const Separator = "\n"

// Chunk is a group of texts sent as one message.
type Chunk struct {
	Text string
	// Links are the indexes of the packed texts in the input.
	Links []int
}

// Pack groups texts greedily into chunks of at most limit runes, in order.
// A text longer than limit is never split and becomes a chunk of its own.
func Pack(texts []string, limit int) []Chunk {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	var (
		chunks []Chunk
		buf    strings.Builder
		bufLen int
		links  []int
	)
	flush := func() {
		if len(links) == 0 {
			return
		}
		chunks = append(chunks, Chunk{Text: buf.String(), Links: links})
		buf.Reset()
		bufLen = 0
		links = nil
	}
	for i, text := range texts {
		textLen := runeLen(text)
		if len(links) > 0 && bufLen+runeLen(Separator)+textLen > limit {
			flush()
		}
		if len(links) > 0 {
			buf.WriteString(Separator)
			bufLen += runeLen(Separator)
		}
		buf.WriteString(text)
		bufLen += textLen
		links = append(links, i)
	}
	flush()
	return chunks
}

func runeLen(value string) int {
	return utf8.RuneCountInString(value)
}
