package validator

import (
	"sort"

	playgroundvalidator "github.com/go-playground/validator/v10"
)

// Kind is the JSON type a field must hold.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindInteger
	KindBoolean
	KindDate
	KindArray
	KindObject
)

// Field describes one key of an object schema. Build it with String, Number, ... and chain
// modifiers; every modifier returns a copy so shared fields can be specialised safely.
type Field struct {
	name       string
	kind       Kind
	required   bool
	allowEmpty bool
	hasDefault bool
	def        interface{}
	rules      string
	label      string
}

func newField(name string, kind Kind) Field {
	return Field{name: name, kind: kind}
}

func String(name string) Field  { return newField(name, KindString) }
func Number(name string) Field  { return newField(name, KindNumber) }
func Integer(name string) Field { return newField(name, KindInteger) }
func Boolean(name string) Field { return newField(name, KindBoolean) }
func Date(name string) Field    { return newField(name, KindDate) }
func Array(name string) Field   { return newField(name, KindArray) }
func Object(name string) Field  { return newField(name, KindObject) }
func Any(name string) Field     { return newField(name, KindAny) }

func (f Field) Required() Field {
	f.required = true
	return f
}

// AllowEmpty accepts "" for string fields.
func (f Field) AllowEmpty() Field {
	f.allowEmpty = true
	return f
}

// Default is injected when the key is absent, unless the request runs with NoDefaults.
func (f Field) Default(v interface{}) Field {
	f.hasDefault = true
	f.def = v
	return f
}

// Rules are go-playground/validator tags applied to the (coerced) value, e.g. "min=3,max=200".
func (f Field) Rules(tag string) Field {
	f.rules = tag
	return f
}

// Label overrides the key name used in messages.
func (f Field) Label(label string) Field {
	f.label = label
	return f
}

func (f Field) Name() string { return f.name }

func (f Field) display() string {
	if f.label != "" {
		return f.label
	}
	return f.name
}

// Schema is an object schema: a fixed set of keys with their constraints.
type Schema struct {
	fields   []Field
	index    map[string]int
	validate *playgroundvalidator.Validate
}

// NewSchema builds an object schema. Later fields with the same name replace earlier ones.
func NewSchema(fields ...Field) *Schema {
	s := &Schema{
		index:    make(map[string]int, len(fields)),
		validate: playgroundvalidator.New(),
	}
	for _, f := range fields {
		if i, ok := s.index[f.name]; ok {
			s.fields[i] = f
			continue
		}
		s.index[f.name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// Keys returns the declared key names in sorted order.
func (s *Schema) Keys() []string {
	keys := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		keys = append(keys, f.name)
	}
	sort.Strings(keys)
	return keys
}

// Extend returns a new schema holding s's fields plus the given ones.
func (s *Schema) Extend(fields ...Field) *Schema {
	all := make([]Field, 0, len(s.fields)+len(fields))
	all = append(all, s.fields...)
	all = append(all, fields...)
	return NewSchema(all...)
}

// Optional returns a copy of s where no field is required. Used for partial updates.
func (s *Schema) Optional() *Schema {
	all := make([]Field, len(s.fields))
	for i, f := range s.fields {
		f.required = false
		all[i] = f
	}
	return NewSchema(all...)
}
