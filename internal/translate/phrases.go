package translate

import "strings"

// offlinePhrases maps common IVR greetings and short farmer utterances
// between Hindi and English so a total provider outage still produces
// something usable for the most frequent inputs.
var offlinePhrases = map[string]map[string]string{
	"hi>en": {
		"नमस्ते":      "hello",
		"नमस्कार":     "greetings",
		"धन्यवाद":     "thank you",
		"हाँ":         "yes",
		"नहीं":        "no",
		"मदद चाहिए":   "I need help",
		"मौसम कैसा है": "how is the weather",
	},
	"en>hi": {
		"hello":       "नमस्ते",
		"greetings":   "नमस्कार",
		"thank you":   "धन्यवाद",
		"yes":         "हाँ",
		"no":          "नहीं",
		"i need help": "मुझे मदद चाहिए",
	},
}

// LookupPhrase consults the offline phrase table. Matching is exact after
// trimming and lowercasing; the table is a last resort, not a translator.
func LookupPhrase(text, source, target string) (string, bool) {
	table, ok := offlinePhrases[source+">"+target]
	if !ok {
		return "", false
	}
	key := strings.ToLower(strings.TrimSpace(text))
	out, ok := table[key]
	return out, ok
}
