package model

import "context"

type zoningKey struct{}

// WithZoning attaches the property's zoning code to ctx so downstream search
// can add zoning-specific queries. An empty code leaves ctx unchanged.
func WithZoning(ctx context.Context, code string) context.Context {
	if code == "" {
		return ctx
	}
	return context.WithValue(ctx, zoningKey{}, code)
}

// ZoningFrom returns the zoning code attached by WithZoning.
func ZoningFrom(ctx context.Context) string {
	code, _ := ctx.Value(zoningKey{}).(string)
	return code
}
