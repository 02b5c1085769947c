package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func TestNATSNotifierPublishesPerTenant(t *testing.T) {
	pub := &fakePublisher{}
	n := newNATSNotifier(pub, "")

	err := n.Notify(context.Background(), DeliveryNotice{TenantID: "t1", EventID: "e1", Status: "partial", ForwardedTo: []string{"https://a"}})
	require.NoError(t, err)
	assert.Equal(t, "hookgate.deliveries.t1", pub.subject)

	var got DeliveryNotice
	require.NoError(t, json.Unmarshal(pub.data, &got))
	assert.Equal(t, "partial", got.Status)
	assert.Equal(t, []string{"https://a"}, got.ForwardedTo)
	assert.NoError(t, n.Close())
}

func TestNATSNotifierErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	n := newNATSNotifier(pub, "x")
	assert.Error(t, n.Notify(context.Background(), DeliveryNotice{TenantID: "t1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, DeliveryNotice{}), context.Canceled)
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	assert.NoError(t, n.Notify(context.Background(), DeliveryNotice{}))
	assert.NoError(t, n.Close())
}
