package db

import (
	"strconv"
	"strings"
)

// IndexBuilder is a fluent builder for FT index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Numeric adds a NUMERIC field to the index.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldNumeric})
}

// SortableNumeric adds a NUMERIC SORTABLE field.
func (b *IndexBuilder) SortableNumeric(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldNumeric, Sortable: true})
}

// Tag adds a TAG field to the index.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldTag})
}

// TagWithSeparator adds a TAG field holding several values split by sep.
func (b *IndexBuilder) TagWithSeparator(name, sep string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldTag, TagSeparator: sep})
}

// Text adds a TEXT field to the index.
func (b *IndexBuilder) Text(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldText})
}

// TextWeighted adds a TEXT field whose BM25 contribution is scaled by weight.
func (b *IndexBuilder) TextWeighted(name string, weight float64) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldText, TextWeight: weight})
}

// Vector adds a FLOAT32 VECTOR field stored under name and queried through alias.
func (b *IndexBuilder) Vector(name, alias string, dim int, algo VectorAlgorithm, distance DistanceMetric) *IndexBuilder {
	return b.add(IndexField{
		Name:           name,
		Alias:          alias,
		Type:           IndexFieldVector,
		VectorAlgo:     algo,
		VectorDim:      dim,
		VectorDistance: distance,
	})
}

// HNSWParams sets M and EF_CONSTRUCTION on the last added vector field.
func (b *IndexBuilder) HNSWParams(m, efConstruct int) *IndexBuilder {
	for i := len(b.def.Fields) - 1; i >= 0; i-- {
		if b.def.Fields[i].Type == IndexFieldVector {
			b.def.Fields[i].VectorM = m
			b.def.Fields[i].VectorEFConstruct = efConstruct
			break
		}
	}
	return b
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	def.Fields = append([]IndexField(nil), b.def.Fields...)
	return &def, nil
}

// String returns a debug representation resembling the FT.CREATE command.
func (idx *IndexDefinition) String() string {
	parts := []string{"FT.CREATE", idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		parts = append(parts, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		parts = append(parts, idx.Prefixes...)
	}
	parts = append(parts, "SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, f.Name)
		if f.Alias != "" {
			parts = append(parts, "AS", f.Alias)
		}
		switch f.Type {
		case IndexFieldTag:
			parts = append(parts, "TAG")
		case IndexFieldNumeric:
			parts = append(parts, "NUMERIC")
		case IndexFieldText:
			parts = append(parts, "TEXT")
			if f.TextWeight > 0 {
				parts = append(parts, "WEIGHT", strconv.FormatFloat(f.TextWeight, 'g', -1, 64))
			}
		case IndexFieldVector:
			parts = append(parts, "VECTOR", string(f.VectorAlgo))
		}
	}
	return strings.Join(parts, " ")
}
