package allanime

import "strings"

// Provider URLs in sourceUrls come obfuscated: a "--" prefix followed by
// hex pairs, each pair standing for one character. The table is fixed on the
// backend side and has been stable for years.
var pairTable = map[string]string{
	"01": "9", "08": "0", "05": "=", "0a": "2", "0b": "3", "0c": "4", "07": "?",
	"00": "8", "5c": "d", "0f": "7", "5e": "f", "17": "/", "54": "l", "09": "1",
	"48": "p", "4f": "w", "0e": "6", "5b": "c", "5d": "e", "0d": "5", "53": "k",
	"1e": "&", "5a": "b", "59": "a", "4a": "r", "4c": "t", "4e": "v", "57": "o",
	"51": "i",
}

// decodeProviderURL turns an obfuscated source URL into a fetchable one.
// Non-obfuscated inputs only get the scheme and path fixups.
func decodeProviderURL(raw string) string {
	u := raw
	if strings.HasPrefix(u, "--") {
		u = decodePairs(strings.TrimPrefix(u, "--"))
	}

	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}

	// The provider endpoint moved behind a .json suffix.
	if strings.Contains(u, "/clock") && !strings.Contains(u, "/clock.json") {
		u = strings.Replace(u, "/clock", "/clock.json", 1)
	}

	if strings.HasPrefix(u, "/apivtwo/") {
		u = baseSite + u
	}

	return u
}

func decodePairs(encoded string) string {
	// A trailing :port survives the encoding untouched.
	main, port, hasPort := strings.Cut(encoded, ":")

	var b strings.Builder
	for i := 0; i+1 < len(main); i += 2 {
		pair := main[i : i+2]
		if ch, ok := pairTable[pair]; ok {
			b.WriteString(ch)
		} else {
			b.WriteString(pair)
		}
	}

	if hasPort {
		return b.String() + ":" + port
	}
	return b.String()
}
