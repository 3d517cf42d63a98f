package texts

import (
	"math/rand/v2"
	"strings"
	"unicode/utf8"
)

// Text is a race passage plus the counts clients need to track progress.
type Text struct {
	Body       string `json:"body"`
	WordCount  int    `json:"word_count"`
	TotalChars int    `json:"total_chars"`
	Custom     bool   `json:"custom"`
}

// wordBank mirrors the common-English pool the practice mode draws from.
var wordBank = []string{
	"the", "be", "to", "of", "and", "a", "in", "that", "have", "it",
	"for", "not", "on", "with", "he", "as", "you", "do", "at", "this",
	"but", "his", "by", "from", "they", "we", "say", "her", "she", "or",
	"an", "will", "my", "one", "all", "would", "there", "their", "what",
	"so", "up", "out", "if", "about", "who", "get", "which", "go", "me",
	"when", "make", "can", "like", "time", "no", "just", "him", "know",
	"take", "people", "into", "year", "your", "good", "some", "could",
	"them", "see", "other", "than", "then", "now", "look", "only", "come",
	"its", "over", "think", "also", "back", "after", "use", "two", "how",
	"our", "work", "first", "well", "way", "even", "new", "want", "because",
	"any", "these", "give", "day", "most", "us", "great", "between",
	"world", "life", "still", "hand", "part", "place", "right", "point",
	"house", "again", "small", "found", "might", "never", "under", "last",
	"thought", "city", "keep", "plant", "light", "water", "every", "earth",
	"around", "before", "along", "while", "sound", "where", "learn",
	"should", "change", "answer", "study", "letter", "mother", "father",
	"always", "number", "little", "night", "paper", "together", "group",
	"often", "until", "children", "enough", "almost", "above", "sometimes",
	"mountain", "young", "family", "story", "example", "begin", "those",
}

const DefaultWordCount = 50

// Generate builds a random passage of n words from the bank.
func Generate(n int) Text {
	if n <= 0 {
		n = DefaultWordCount
	}

	words := make([]string, n)
	for i := range words {
		words[i] = wordBank[rand.IntN(len(wordBank))]
	}

	body := strings.Join(words, " ")
	return Text{
		Body:       body,
		WordCount:  n,
		TotalChars: utf8.RuneCountInString(body),
	}
}

// Custom wraps a host-provided passage with its counts.
func Custom(body string) Text {
	body = strings.TrimSpace(body)
	return Text{
		Body:       body,
		WordCount:  len(strings.Fields(body)),
		TotalChars: utf8.RuneCountInString(body),
		Custom:     true,
	}
}
