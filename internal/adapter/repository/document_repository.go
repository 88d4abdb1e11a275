package repository

import (
	"context"

	"shopdesk/internal/livesync"
	"shopdesk/pkg/errors"
)

// collection is the shared plumbing of the document-backed repositories. It works on any livesync.Backend.
type collection struct {
	backend  livesync.Backend
	name     string
	resource string
}

func (c collection) get(ctx context.Context, id string) (livesync.Document, error) {
	doc, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		return livesync.Document{}, translate(c.resource, err)
	}
	return doc, nil
}

func (c collection) add(ctx context.Context, fields map[string]interface{}) (string, error) {
	id, err := c.backend.Add(ctx, c.name, stamped(fields, "createdAt", "updatedAt"))
	if err != nil {
		return "", translate(c.resource, err)
	}
	return id, nil
}

func (c collection) set(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := c.backend.Set(ctx, c.name, id, stamped(fields, "createdAt", "updatedAt")); err != nil {
		return translate(c.resource, err)
	}
	return nil
}

func (c collection) update(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := c.backend.Update(ctx, c.name, id, stamped(fields, "updatedAt")); err != nil {
		return translate(c.resource, err)
	}
	return nil
}

func (c collection) find(ctx context.Context, q livesync.Query) ([]livesync.Document, error) {
	q.Collection = c.name
	docs, err := livesync.Fetch(ctx, c.backend, q)
	if err != nil {
		return nil, translate(c.resource, err)
	}
	return docs, nil
}

// stamped copies fields and fills the named timestamp fields with server time unless already present.
func stamped(fields map[string]interface{}, names ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+len(names))
	for k, v := range fields {
		out[k] = v
	}
	for _, n := range names {
		if _, ok := out[n]; !ok {
			out[n] = livesync.ServerTimestamp
		}
	}
	return out
}

func translate(resource string, err error) error {
	switch {
	case livesync.IsNotFound(err):
		return errors.NotFound(resource, err)
	case livesync.IsPermissionDenied(err):
		return errors.Forbidden("Access to "+resource+" denied", err)
	}
	return errors.Internal("Failed to access "+resource, err)
}
