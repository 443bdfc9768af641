package indexvalue

import (
	"context"
	"fmt"
)

// Factory produces the index value of a single field. It holds no mutable
// state and may be shared between goroutines.
type Factory struct {
	dataTypes  DataTypeService
	converters *ConverterSet
	fallback   Converter
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithConverters replaces the built-in converter set.
func WithConverters(set *ConverterSet) FactoryOption {
	return func(f *Factory) {
		f.converters = set
	}
}

// WithFallback replaces the converter used for aliases without a registered
// converter.
func WithFallback(c Converter) FactoryOption {
	return func(f *Factory) {
		f.fallback = c
	}
}

// NewFactory builds a factory with the built-in converters.
func NewFactory(dataTypes DataTypeService, media MediaService, content ContentService, opts ...FactoryOption) *Factory {
	f := &Factory{
		dataTypes:  dataTypes,
		converters: NewConverterSet(BuiltinConverters(media, content)...),
		fallback:   DefaultConverter{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Converters exposes the read-only converter lookup.
func (f *Factory) Converters() *ConverterSet {
	return f.converters
}

// GetValue returns the index key and value of field for culture. It returns
// the zero KeyValue when the field's data type is not configured and
// (field alias, "") when the data type extracts nothing.
func (f *Factory) GetValue(ctx context.Context, field Field, culture string) (KeyValue, error) {
	dataType, found, err := f.dataType(ctx, field)
	if err != nil {
		return KeyValue{}, err
	}
	if !found {
		return KeyValue{}, nil
	}

	values, err := dataType.Extractor.IndexValues(ctx, field, culture, "", true)
	if err != nil {
		return KeyValue{}, fmt.Errorf("extracting %s: %w", field.Alias, err)
	}
	if len(values) == 0 {
		return KeyValue{Key: field.Alias}, nil
	}

	// only the first grouping is indexed
	first := values[0]

	if c, ok := f.converters.Lookup(field.EditorAlias); ok {
		out, err := c.Convert(ctx, first)
		if err != nil {
			return KeyValue{}, fmt.Errorf("converting %s (%s): %w", field.Alias, field.EditorAlias, err)
		}
		return KeyValue{Key: field.Alias, Value: out}, nil
	}

	out, err := f.fallback.Convert(ctx, first)
	if err != nil {
		return KeyValue{}, fmt.Errorf("converting %s: %w", field.Alias, err)
	}
	return KeyValue{Key: first.Key, Value: out}, nil
}

func (f *Factory) dataType(ctx context.Context, field Field) (DataType, bool, error) {
	candidates, err := f.dataTypes.GetByEditorAlias(ctx, field.EditorAlias)
	if err != nil {
		return DataType{}, false, fmt.Errorf("looking up data types for %s: %w", field.EditorAlias, err)
	}
	for _, dt := range candidates {
		if dt.ID == field.DataTypeID && dt.Extractor != nil {
			return dt, true, nil
		}
	}
	return DataType{}, false, nil
}
