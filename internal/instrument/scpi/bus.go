package scpi

import "context"

// Resource is an instrument address on some bus that can be opened.
type Resource interface {
	Address() string
	Open(ctx context.Context) (Transport, error)
}

// Bus enumerates instrument resources.
type Bus interface {
	Name() string
	Resources(ctx context.Context) ([]Resource, error)
}
