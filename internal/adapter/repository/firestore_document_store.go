package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"shopdesk/internal/livesync"
	"shopdesk/pkg/logger"
)

// FirestoreDocumentStore implements livesync.Backend on Cloud Firestore. Listeners use Query.Snapshots, so
// every change delivers the full result set.
type FirestoreDocumentStore struct {
	client *firestore.Client
}

func NewFirestoreDocumentStore(client *firestore.Client) *FirestoreDocumentStore {
	return &FirestoreDocumentStore{client: client}
}

func (s *FirestoreDocumentStore) query(q livesync.Query) firestore.Query {
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != nil {
		dir := firestore.Asc
		if q.OrderBy.Direction == livesync.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy.Field, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

func (s *FirestoreDocumentStore) Subscribe(ctx context.Context, q livesync.Query, onChange func([]livesync.Document), onError func(error)) (livesync.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.query(q).Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || err == iterator.Done || status.Code(err) == codes.Canceled {
					return
				}
				onError(classify(err))
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				onError(classify(err))
				return
			}
			out := make([]livesync.Document, 0, len(docs))
			for _, d := range docs {
				out = append(out, livesync.Document{ID: d.Ref.ID, Data: d.Data()})
			}
			onChange(out)
		}
	}()

	return livesync.CancelFunc(cancel), nil
}

func (s *FirestoreDocumentStore) Get(ctx context.Context, collection, id string) (livesync.Document, error) {
	doc, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return livesync.Document{}, classify(err)
	}
	return livesync.Document{ID: doc.Ref.ID, Data: doc.Data()}, nil
}

func (s *FirestoreDocumentStore) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := uuid.New().String()
	data := toFirestore(fields)
	data["id"] = id
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, data); err != nil {
		return "", classify(err)
	}
	return id, nil
}

func (s *FirestoreDocumentStore) Set(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	data := toFirestore(fields)
	data["id"] = id
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, data); err != nil {
		return classify(err)
	}
	return nil
}

func (s *FirestoreDocumentStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range toFirestore(fields) {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		return classify(err)
	}
	return nil
}

func (s *FirestoreDocumentStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func toFirestore(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		switch val := v.(type) {
		case livesync.UnionValue:
			out[k] = firestore.ArrayUnion(val.Elems...)
		default:
			if v == livesync.ServerTimestamp {
				out[k] = firestore.ServerTimestamp
				continue
			}
			out[k] = v
		}
	}
	return out
}

// classify maps gRPC status codes onto the livesync error kinds.
func classify(err error) error {
	switch status.Code(err) {
	case codes.FailedPrecondition:
		logger.Warn("firestore: query needs an index: %v", err)
		return fmt.Errorf("%w: %v", livesync.ErrIndexRequired, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", livesync.ErrPermissionDenied, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", livesync.ErrNotFound, err)
	}
	return err
}
