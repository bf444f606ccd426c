// internal/startwith/provider.go
package startwith

import "context"

// Provider supplies the START_WITH value for a freshly synthesized identity
// generator, keyed by (schema, table).
type Provider interface {
	StartWith(ctx context.Context, schema, table string) (string, error)
}

// Static always returns the same value. The default policy is "1".
type Static struct {
	Value string
}

func (s Static) StartWith(_ context.Context, _, _ string) (string, error) {
	if s.Value == "" {
		return "1", nil
	}
	return s.Value, nil
}
