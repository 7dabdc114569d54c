package translate

import "strings"

// sentenceEnders terminate a sentence when followed by a space or end of
// text. Devanagari danda and double danda cover Hindi transcripts; the bare
// pipe shows up in ASR output as a danda stand-in.
var sentenceEnders = []rune{'.', '!', '?', '।', '॥', '|'}

func isEnder(r rune) bool {
	for _, e := range sentenceEnders {
		if r == e {
			return true
		}
	}
	return false
}

// SplitSentences breaks text on sentence boundaries and newlines. The
// terminator stays attached to its sentence.
func SplitSentences(text string) []string {
	var out []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if isEnder(r) {
			// Boundary only when followed by whitespace or end of text,
			// so decimals like "2.5" survive.
			if i == len(runes)-1 || runes[i+1] == ' ' || runes[i+1] == '\n' {
				flush()
			}
		}
	}
	flush()
	return out
}

// Chunk packs sentences into chunks whose UTF-8 byte length stays within
// maxBytes. A sentence that alone exceeds the budget is split on word
// boundaries, and in the pathological single-token case on rune boundaries.
func Chunk(text string, maxBytes int) []string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		if s := strings.TrimSpace(text); s != "" {
			return []string{s}
		}
		return nil
	}

	var chunks []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	add := func(piece string) {
		if cur.Len() > 0 && cur.Len()+1+len(piece) > maxBytes {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(piece)
	}

	for _, sentence := range SplitSentences(text) {
		if len(sentence) <= maxBytes {
			add(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			if len(word) <= maxBytes {
				add(word)
				continue
			}
			// Single token over budget: split on rune boundaries.
			for _, piece := range splitRunes(word, maxBytes) {
				add(piece)
			}
		}
	}
	flush()
	return chunks
}

// splitRunes cuts s into pieces of at most maxBytes without breaking a
// UTF-8 sequence.
func splitRunes(s string, maxBytes int) []string {
	var out []string
	var cur strings.Builder
	for _, r := range s {
		rl := len(string(r))
		if cur.Len()+rl > maxBytes {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
