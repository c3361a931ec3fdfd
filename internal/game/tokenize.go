package game

// Tokenize splits a word into the logical letters used by the dictionary and
// the board. Letters are lower-cased, a "qu" pair becomes the single token
// "qu", a "q" that is not followed by "u" is dropped, and anything that is not
// an ASCII letter is skipped.
func Tokenize(word string) []string {
	tokens := make([]string, 0, len(word))
	for i := 0; i < len(word); i++ {
		c := lower(word[i])
		if c == 'q' {
			if i+1 < len(word) && lower(word[i+1]) == 'u' {
				tokens = append(tokens, "qu")
				i++
			}
			continue
		}
		if c < 'a' || c > 'z' {
			continue
		}
		tokens = append(tokens, string(c))
	}
	return tokens
}

// CountLogicalLetters returns the number of tokens of word; "qu" counts once.
// This is also the number of points a valid word scores.
func CountLogicalLetters(word string) int {
	return len(Tokenize(word))
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
