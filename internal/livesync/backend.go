package livesync

import (
	"context"
	"errors"
)

var (
	// ErrIndexRequired means the backend refused the query shape, typically a missing composite index.
	ErrIndexRequired = errors.New("query requires an index")
	// ErrPermissionDenied means the caller may not read or write the requested documents.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound means the document does not exist.
	ErrNotFound = errors.New("document not found")
)

// CancelFunc releases a backend listener. Calling it more than once is allowed.
type CancelFunc func()

// Backend is the document store the core talks to. Implementations deliver the full result set on every
// change, never a delta.
type Backend interface {
	Subscribe(ctx context.Context, q Query, onChange func([]Document), onError func(error)) (CancelFunc, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
	Set(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
}

func IsIndexRequired(err error) bool {
	return errors.Is(err, ErrIndexRequired)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
