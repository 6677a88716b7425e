package params

// StoreBuilderOption is a functional option for configuring a store.
// Use the With* functions to create options.
type StoreBuilderOption func(s *store)

// WithSchema replaces the default schema.
//
// Parameters:
//   - schema: the schema to validate against
//
// Returns:
//   - StoreBuilderOption: option function to apply
func WithSchema(schema *Schema) StoreBuilderOption {
	return func(s *store) {
		if schema != nil {
			s.schema = schema
			s.values = nil
		}
	}
}

// WithVersion overrides the schema version tag. Only useful for migrations and tests.
//
// Parameters:
//   - version: the schema version tag
//
// Returns:
//   - StoreBuilderOption: option function to apply
func WithVersion(version int) StoreBuilderOption {
	return func(s *store) {
		s.version = version
	}
}

// WithValues seeds the store with initial values layered over the schema defaults.
// Values are coerced; unknown ids are ignored.
//
// Parameters:
//   - values: initial values keyed by parameter id
//
// Returns:
//   - StoreBuilderOption: option function to apply
func WithValues(values map[string]any) StoreBuilderOption {
	return func(s *store) {
		if s.values == nil {
			s.values = s.schema.defaults()
		}
		for id, v := range values {
			if d, i, ok := s.schema.Lookup(id); ok {
				s.values[i] = Coerce(d, v)
			}
		}
	}
}
