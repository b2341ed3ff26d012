package feed

import (
	"context"

	"example.com/casefeed/internal/domain"
)

// NameResolver finds which of a batch of clients have names containing a query.
type NameResolver interface {
	// Resolve returns id → name for the clients among ids whose name contains query,
	// case-insensitively. An empty query returns every known client in ids.
	Resolve(ctx context.Context, ids []string, query string) (map[string]string, error)
}

// DirectoryResolver resolves names with one batched ClientDirectory lookup per call.
type DirectoryResolver struct {
	directory domain.ClientDirectory
}

// NewDirectoryResolver constructs a DirectoryResolver.
func NewDirectoryResolver(directory domain.ClientDirectory) *DirectoryResolver {
	return &DirectoryResolver{directory: directory}
}

// Resolve implements NameResolver.
func (r *DirectoryResolver) Resolve(ctx context.Context, ids []string, query string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	clients, err := r.directory.FindClients(ctx, ids, query)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(clients))
	for _, c := range clients {
		out[c.ID] = c.Name
	}
	return out, nil
}
