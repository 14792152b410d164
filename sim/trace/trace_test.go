package trace

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Emit_PreservesOrder(t *testing.T) {
	// GIVEN a recorder
	r := NewRecorder()

	// WHEN records are emitted
	r.Emit(Record{Time: 1, Kind: ConnectionUp, Node: 0, Peer: 1})
	r.Emit(Record{Time: 1, Kind: MessageCreated, Node: 0, Peer: NoNode, MessageID: "M1"})
	r.Emit(Record{Time: 2, Kind: ConnectionDown, Node: 0, Peer: 1})

	// THEN they come back in emission order and can be filtered by kind
	require.Len(t, r.Records, 3)
	assert.Equal(t, MessageCreated, r.Records[1].Kind)
	assert.Len(t, r.OfKind(ConnectionUp), 1)
	assert.Empty(t, r.OfKind(MessageExpired))
}

func TestWriter_RoundTrip(t *testing.T) {
	// GIVEN a stream of records of every kind
	var buf bytes.Buffer
	w := NewWriter(&buf)
	var want []Record
	for i, k := range Kinds {
		rec := Record{Time: float64(i) * 0.5, Kind: k, Node: i, Peer: NoNode, MessageID: "M7", Copies: i}
		want = append(want, rec)
		w.Emit(rec)
	}
	require.NoError(t, w.Close())
	assert.Equal(t, len(Kinds), w.Count())

	// WHEN the stream is read back
	got, err := ReadAll(&buf)

	// THEN every record survives unchanged
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriter_SameRecords_ByteIdentical(t *testing.T) {
	encode := func() []byte {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		w.Emit(Record{Time: 3.25, Kind: MessageDelivered, Node: 4, Peer: 2, MessageID: "M1", Hops: 3, Created: 1})
		w.Emit(Record{Time: 4, Kind: MessageDropped, Node: 2, Peer: NoNode, MessageID: "M1", Reason: "delivered"})
		require.NoError(t, w.Close())
		return buf.Bytes()
	}
	assert.Equal(t, encode(), encode())
}
