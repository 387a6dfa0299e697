package schema

import (
	"strings"
	"unicode"
)

// SnakeCase converts an entity name to its table name form:
// "NormalProxy" -> "normal_proxy", "ConcreteAB" -> "concrete_ab".
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// className lowercases an entity name.
func className(entity string) string {
	return strings.ToLower(entity)
}

// ownerName names the record that holds a field's column: the entity for
// shared fields, its translation for translated ones.
func ownerName(entity string, translated bool) string {
	if translated {
		return className(entity) + "translation"
	}
	return className(entity)
}

// defaultRelatedName is the reverse accessor name used when a foreign key
// declares none.
func defaultRelatedName(source string, translated bool) string {
	return ownerName(source, translated) + "_set"
}
