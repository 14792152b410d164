package observe

import (
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dtnsim/dtnsim/sim/trace"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	sent         []published
	failAfter    int
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	if c.err != nil && len(c.sent) >= c.failAfter {
		return &fakeToken{err: c.err}
	}
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestPublisher_PublishesPerKindTopic(t *testing.T) {
	// GIVEN a publisher for run r1
	client := &fakeClient{}
	p := NewPublisher(client, MQTTConfig{RunID: "r1", QoS: 1})

	// WHEN two records are emitted
	rec := trace.Record{Time: 4, Kind: trace.MessageDelivered, Node: 1, Peer: 0, MessageID: "M1", Hops: 2, Created: 1}
	p.Emit(rec)
	p.Emit(trace.Record{Time: 5, Kind: trace.ConnectionDown, Node: 0, Peer: 1})

	// THEN each lands on its kind topic with a msgpack payload
	require.Len(t, client.sent, 2)
	assert.Equal(t, "dtnsim/r1/messageDelivered", client.sent[0].topic)
	assert.Equal(t, "dtnsim/r1/connectionDown", client.sent[1].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)

	var got trace.Record
	require.NoError(t, msgpack.Unmarshal(client.sent[0].payload, &got))
	assert.Equal(t, rec, got)
	assert.Equal(t, 2, p.Sent())

	require.NoError(t, p.Close())
	assert.True(t, client.disconnected)
}

func TestPublisher_KeepsFirstError(t *testing.T) {
	// GIVEN a broker that fails from the second publish on
	boom := errors.New("broker gone")
	client := &fakeClient{failAfter: 1, err: boom}
	p := NewPublisher(client, MQTTConfig{TopicPrefix: "lab", RunID: "r2"})

	// WHEN three records are emitted
	for i := 0; i < 3; i++ {
		p.Emit(trace.Record{Time: float64(i), Kind: trace.MessageCreated})
	}

	// THEN publishing stops and Close reports the failure
	assert.Equal(t, 1, p.Sent())
	assert.Equal(t, "lab/r2/messageCreated", client.sent[0].topic)
	err := p.Close()
	assert.ErrorIs(t, err, boom)
}

func TestDialMQTT_RequiresBroker(t *testing.T) {
	_, err := DialMQTT(MQTTConfig{RunID: "x"})
	assert.Error(t, err)
}
