package core

// FieldKind classifies the storage type of an entity attribute.
type FieldKind int

const (
	// KindString is a bounded character field (VARCHAR).
	KindString FieldKind = iota
	// KindText is an unbounded character field.
	KindText
	// KindInt is a 64-bit integer.
	KindInt
	// KindFloat is a double precision number.
	KindFloat
	// KindBool is a boolean flag.
	KindBool
	// KindTime is a timestamp.
	KindTime
	// KindForeignKey references the primary key of another entity.
	KindForeignKey
)

// String returns the string representation of FieldKind.
func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindForeignKey:
		return "foreign_key"
	default:
		return "unknown"
	}
}

// ParseFieldKind parses the textual kind used in declaration files.
func ParseFieldKind(s string) (FieldKind, bool) {
	switch s {
	case "string", "char", "varchar":
		return KindString, true
	case "text":
		return KindText, true
	case "int", "integer":
		return KindInt, true
	case "float", "double", "number":
		return KindFloat, true
	case "bool", "boolean":
		return KindBool, true
	case "time", "datetime", "timestamp":
		return KindTime, true
	case "fk", "foreign_key", "foreignkey":
		return KindForeignKey, true
	default:
		return 0, false
	}
}
