package schema

// Accessor is the read/write view of an instance handed to behavior hooks.
type Accessor interface {
	// Get returns a shared or translated value. Reading a translated field
	// without a resolved translation fails with core.ErrTranslationNotFound.
	Get(name string) (any, error)
	// SafeGet returns def when the value is unavailable.
	SafeGet(name string, def any) any
	// Set assigns a shared or translated value.
	Set(name string, v any) error
	// Language is the language of the resolved translation, or "".
	Language() string
}

// Behavior holds the overridable parts of an entity. Proxies inherit the
// behavior of their parent for every hook they leave nil.
type Behavior struct {
	// Display renders an instance for humans.
	Display func(Accessor) string
	// BeforeSave runs before the shared and translation rows are written.
	BeforeSave func(Accessor) error
}

// merge fills unset hooks from parent.
func (b Behavior) merge(parent Behavior) Behavior {
	if b.Display == nil {
		b.Display = parent.Display
	}
	if b.BeforeSave == nil {
		b.BeforeSave = parent.BeforeSave
	}
	return b
}
