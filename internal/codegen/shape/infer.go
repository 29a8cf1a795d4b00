package shape

import (
	"strconv"

	"go.followtheprocess.codes/uncurl/internal/naming"
)

// TypeKind is the kind of an inferred [Type].
type TypeKind int

// Inferred type kinds.
const (
	// Any is a value seen with different kinds in different places.
	Any TypeKind = iota

	// Unknown is a value only ever seen as null, or the element of a list that
	// was always empty.
	Unknown

	Boolean
	Integer
	Float
	Text
	List
	Struct
)

// String implements [fmt.Stringer] for [TypeKind].
func (k TypeKind) String() string {
	switch k {
	case Any:
		return "any"
	case Unknown:
		return "unknown"
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Text:
		return "text"
	case List:
		return "list"
	case Struct:
		return "struct"
	default:
		return "TypeKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Type is an inferred type.
type Type struct {
	// Elem is the element type of a List
	Elem *Type

	// Name is the name of a Struct, see [Model.Struct]
	Name string

	// Kind is the kind of type
	Kind TypeKind

	// Nullable is set if null was seen for this value
	Nullable bool
}

// StructField is a single field of an inferred struct.
type StructField struct {
	// Key is the JSON key exactly as it appears in the document
	Key string

	// Type is the field's type
	Type Type

	// Optional is set if the field was missing from at least one of the objects
	// the struct was inferred from
	Optional bool
}

// StructType is an inferred struct, a named type for a JSON object.
type StructType struct {
	// Name is the type name, unique within a [Model]
	Name string

	// Fields are the fields in the order they were first seen
	Fields []StructField
}

// Field returns the field with the given key.
func (s StructType) Field(key string) (StructField, bool) {
	for _, field := range s.Fields {
		if field.Key == key {
			return field, true
		}
	}

	return StructField{}, false
}

// Model is the set of types inferred from a JSON document.
type Model struct {
	// Structs are every struct type, the root's first (if the root is an object)
	// followed by nested types in the order they were found
	Structs []StructType

	// Root is the type of the document itself
	Root Type
}

// Struct returns the struct type with the given name.
func (m Model) Struct(name string) (StructType, bool) {
	for _, s := range m.Structs {
		if s.Name == name {
			return s, true
		}
	}

	return StructType{}, false
}

// Infer infers a [Model] from a parsed JSON document, naming the root type name.
//
// Objects become named structs, nested ones named after the key they are stored
// under (singularised for the elements of a list). Every element of a list is
// merged into a single type: integers and floats widen to float, objects merge
// their fields (a field missing from some becomes optional) and anything else
// that disagrees becomes [Any].
func Infer(node *Node, name string) Model {
	inf := &inferrer{
		structs: make(map[string]*StructType),
		used:    make(map[string]bool),
	}

	root := inf.infer(node, name)

	model := Model{Root: root}
	for _, structName := range inf.order {
		model.Structs = append(model.Structs, *inf.structs[structName])
	}

	return model
}

// inferrer holds the state of a single call to [Infer].
type inferrer struct {
	structs map[string]*StructType // Structs by name
	used    map[string]bool        // Names already taken
	order   []string               // Struct names in the order they were created
}

// infer returns the type of node, declaring a struct called name if it is an
// object.
func (inf *inferrer) infer(node *Node, name string) Type {
	switch node.Kind {
	case Null:
		return Type{Kind: Unknown, Nullable: true}
	case Bool:
		return Type{Kind: Boolean}
	case Number:
		if node.IsInteger() {
			return Type{Kind: Integer}
		}

		return Type{Kind: Float}
	case String:
		return Type{Kind: Text}
	case Array:
		elemName := naming.Singular(name)
		if elemName == name {
			elemName = name + "Item"
		}

		var elem *Type

		for _, item := range node.Items {
			t := inf.inferElem(item, elemName, elem)
			elem = &t
		}

		if elem == nil {
			elem = &Type{Kind: Unknown}
		}

		return Type{Kind: List, Elem: elem}
	case Object:
		s := inf.declare(name)
		inf.addFields(s, node)

		return Type{Kind: Struct, Name: s.Name}
	default:
		return Type{Kind: Any}
	}
}

// inferElem infers the type of a list element and merges it with the type of
// the elements seen before it.
func (inf *inferrer) inferElem(item *Node, name string, previous *Type) Type {
	if previous == nil {
		return inf.infer(item, name)
	}

	// Objects merge into the struct already declared for this list rather
	// than declaring one per element
	if item.Kind == Object && previous.Kind == Struct {
		inf.mergeFields(inf.structs[previous.Name], item)
		return *previous
	}

	return inf.merge(*previous, inf.infer(item, name))
}

// declare creates a new struct with a unique name based on name.
func (inf *inferrer) declare(name string) *StructType {
	base := TypeName(name)
	unique := base

	for n := 2; inf.used[unique]; n++ {
		unique = base + strconv.Itoa(n)
	}

	inf.used[unique] = true
	s := &StructType{Name: unique}
	inf.structs[unique] = s
	inf.order = append(inf.order, unique)

	return s
}

// addFields adds every member of object to a newly declared struct.
func (inf *inferrer) addFields(s *StructType, object *Node) {
	for _, field := range object.Fields {
		if _, exists := s.Field(field.Key); exists {
			// Duplicate key, JSON decoders keep the last one
			continue
		}

		s.Fields = append(s.Fields, StructField{
			Key:  field.Key,
			Type: inf.infer(field.Value, field.Key),
		})
	}
}

// mergeFields merges another object into an existing struct: new keys are added
// as optional fields, keys missing from object become optional and types of keys
// in both are merged.
func (inf *inferrer) mergeFields(s *StructType, object *Node) {
	for i, existing := range s.Fields {
		value := object.Get(existing.Key)
		if value == nil {
			s.Fields[i].Optional = true
			continue
		}

		if value.Kind == Object && existing.Type.Kind == Struct {
			inf.mergeFields(inf.structs[existing.Type.Name], value)
			continue
		}

		if value.Kind == Array && existing.Type.Kind == List && existing.Type.Elem != nil {
			elem := *existing.Type.Elem
			for _, item := range value.Items {
				elem = inf.inferElem(item, naming.Singular(existing.Key), &elem)
			}

			merged := existing.Type
			merged.Elem = &elem
			s.Fields[i].Type = merged

			continue
		}

		s.Fields[i].Type = inf.merge(existing.Type, inf.infer(value, existing.Key))
	}

	for _, field := range object.Fields {
		if _, exists := s.Field(field.Key); exists {
			continue
		}

		s.Fields = append(s.Fields, StructField{
			Key:      field.Key,
			Type:     inf.infer(field.Value, field.Key),
			Optional: true,
		})
	}
}

// merge returns the type that can hold values of both a and b.
func (inf *inferrer) merge(a, b Type) Type {
	nullable := a.Nullable || b.Nullable

	switch {
	case a.Kind == Unknown:
		// Nothing but nulls (or nothing at all) seen so far, the other side decides
		b.Nullable = nullable
		return b
	case b.Kind == Unknown:
		a.Nullable = nullable
		return a
	case a.Kind == b.Kind && a.Kind != List && a.Kind != Struct:
		a.Nullable = nullable
		return a
	case a.Kind == Integer && b.Kind == Float, a.Kind == Float && b.Kind == Integer:
		return Type{Kind: Float, Nullable: nullable}
	case a.Kind == List && b.Kind == List:
		switch {
		case a.Elem == nil:
			b.Nullable = nullable
			return b
		case b.Elem == nil:
			a.Nullable = nullable
			return a
		}

		elem := inf.merge(*a.Elem, *b.Elem)

		return Type{Kind: List, Elem: &elem, Nullable: nullable}
	case a.Kind == Struct && b.Kind == Struct && a.Name == b.Name:
		a.Nullable = nullable
		return a
	default:
		return Type{Kind: Any, Nullable: nullable}
	}
}
