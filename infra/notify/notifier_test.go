package notify

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrota/rotaplan/core/events"
)

type stubToken struct{ err error }

func (t *stubToken) Wait() bool                     { return true }
func (t *stubToken) WaitTimeout(time.Duration) bool { return true }
func (t *stubToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *stubToken) Error() error { return t.err }

type stubClient struct {
	mu       sync.Mutex
	payloads map[string][][]byte
	fail     int
}

func newStubClient() *stubClient {
	return &stubClient{payloads: make(map[string][][]byte)}
}

func (c *stubClient) IsConnected() bool   { return true }
func (c *stubClient) Connect() paho.Token { return &stubToken{} }
func (c *stubClient) Disconnect(uint)     {}
func (c *stubClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail > 0 {
		c.fail--
		return &stubToken{err: assert.AnError}
	}
	c.payloads[topic] = append(c.payloads[topic], payload.([]byte))
	return &stubToken{}
}

func newTestNotifier(t *testing.T, cli *stubClient) *Notifier {
	t.Helper()
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return cli }
	t.Cleanup(func() { newMQTTClient = orig })
	n, err := New(Config{Broker: "tcp://localhost:1883", BackoffMS: 1})
	require.NoError(t, err)
	return n
}

func TestNotifierAnnounceResolve(t *testing.T) {
	cli := newStubClient()
	n := newTestNotifier(t, cli)

	ev := events.ResolveEvent{Status: "valid", Trainees: 4, Elapsed: time.Second}
	require.NoError(t, n.AnnounceResolve(ev))

	msgs := cli.payloads["rotaplan/resolve"]
	require.Len(t, msgs, 1)
	var got events.ResolveEvent
	require.NoError(t, json.Unmarshal(msgs[0], &got))
	assert.Equal(t, "valid", got.Status)
	assert.Equal(t, 4, got.Trainees)
}

func TestNotifierRetriesPublish(t *testing.T) {
	cli := newStubClient()
	cli.fail = 2
	n := newTestNotifier(t, cli)

	require.NoError(t, n.AnnounceOverride(events.OverrideEvent{Actor: "chief"}))
	require.Len(t, cli.payloads["rotaplan/override"], 1)
}

func TestNotifierGivesUpAfterRetries(t *testing.T) {
	cli := newStubClient()
	cli.fail = 10
	n := newTestNotifier(t, cli)

	assert.Error(t, n.AnnounceMove(events.MoveEvent{TraineeID: "t1"}))
}
