// Package email derives presentable recipient names from addresses, for
// notifications that carry no explicit recipient name.
package email

import (
	"strings"
	"unicode"
)

// DisplayName builds a "First Last" display name from the address's local
// part. Separator characters split name words; a single word gets a generic
// "User" surname, and an unparseable address falls back to "User User".
func DisplayName(address string) string {
	local := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		local = address[:at]
	}

	words := strings.FieldsFunc(local, func(r rune) bool {
		switch r {
		case '.', '_', '-', '+':
			return true
		}
		return false
	})
	if len(words) == 0 {
		return "User User"
	}

	first := title(words[0])
	if len(words) == 1 {
		return first + " User"
	}
	return first + " " + title(words[len(words)-1])
}

func title(word string) string {
	runes := []rune(word)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
