package codegen

import (
	"strconv"

	"go.followtheprocess.codes/uncurl/internal/codegen/shape"
)

// fieldNames returns an identifier for every field of s, in field order, made
// by case and unique within the struct.
func fieldNames(s shape.StructType, fallback string, caser func(string) string) []string {
	names := make([]string, 0, len(s.Fields))
	seen := make(map[string]bool, len(s.Fields))

	for _, field := range s.Fields {
		base := caser(field.Key)
		if base == "" {
			base = fallback
		}

		name := base
		for i := 2; seen[name]; i++ {
			name = base + strconv.Itoa(i)
		}

		seen[name] = true
		names = append(names, name)
	}

	return names
}

// fieldIndex returns the index of the field named key in s, -1 if there isn't one.
func fieldIndex(s shape.StructType, key string) int {
	for i, field := range s.Fields {
		if field.Key == key {
			return i
		}
	}

	return -1
}

// structOf returns the inferred struct for t, which must be of kind [shape.Struct].
func (g *gen) structOf(t shape.Type) shape.StructType {
	if g.model == nil {
		return shape.StructType{Name: t.Name}
	}

	s, _ := g.model.Struct(t.Name)

	return s
}
