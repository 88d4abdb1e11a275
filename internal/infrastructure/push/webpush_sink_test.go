package push

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/livesync"
)

type fakeUsers struct {
	user    *entity.User
	updates []map[string]interface{}
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return f.user, nil
}

func (f *fakeUsers) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	f.updates = append(f.updates, fields)
	return nil
}

func stubSend(codes map[string]int, calls *[]string) func(context.Context, []byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
	return func(ctx context.Context, payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error) {
		*calls = append(*calls, sub.Endpoint)
		return &http.Response{StatusCode: codes[sub.Endpoint], Body: io.NopCloser(strings.NewReader(""))}, nil
	}
}

func TestWebPushPrunesGoneEndpoints(t *testing.T) {
	users := &fakeUsers{user: &entity.User{ID: "ana", PushSubscriptions: []entity.PushSubscription{
		{Endpoint: "https://push/live"},
		{Endpoint: "https://push/gone"},
	}}}
	var calls []string
	sink := NewWebPushSink(Options{PublicKey: "pub", PrivateKey: "priv", Subject: "mailto:x@y"}, users)
	sink.send = stubSend(map[string]int{"https://push/live": 201, "https://push/gone": 410}, &calls)

	require.NoError(t, sink.Notify(context.Background(), livesync.Alert{UserID: "ana", Title: "hi", Tag: "n1"}))
	assert.Len(t, calls, 2)
	require.Len(t, users.updates, 1)
	assert.Len(t, users.updates[0]["pushSubscriptions"], 1)
}

func TestWebPushWithoutSubscriptionsIsNoop(t *testing.T) {
	users := &fakeUsers{user: &entity.User{ID: "ana"}}
	var calls []string
	sink := NewWebPushSink(Options{}, users)
	sink.send = stubSend(nil, &calls)

	assert.NoError(t, sink.Notify(context.Background(), livesync.Alert{UserID: "ana"}))
	assert.Empty(t, calls)
	assert.False(t, Options{PublicKey: "x"}.Configured())
}
