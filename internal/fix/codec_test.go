package fix

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Message {
	return NewMessage().
		Add(TagBeginString, "FIXT.1.1").
		Add(TagMsgType, MsgTypeMarketDataSnapshot).
		Add(TagSenderCompID, "SIM_XETRA").
		Add(TagTargetCompID, "CLIENT_XETRA").
		AddInt(TagMsgSeqNum, 7).
		Add(TagSendingTime, "20250101-10:00:00.000").
		Add(TagMDReqID, "md-1").
		Add(TagSymbol, "AMZ").
		AddInt(TagNoMDEntries, 2).
		Add(TagMDEntryType, "0").
		Add(TagMDEntryPx, "98.5").
		Add(TagMDEntrySize, "100").
		Add(TagMDEntryType, "1").
		Add(TagMDEntryPx, "101.5").
		Add(TagMDEntrySize, "40")
}

func mustEncode(t *testing.T, m *Message) []byte {
	t.Helper()
	data, err := Encode(m)
	require.NoError(t, err)
	return data
}

func TestEncode_HeaderAndTrailer(t *testing.T) {
	data := mustEncode(t, sampleSnapshot())

	assert.True(t, bytes.HasPrefix(data, []byte("8=FIXT.1.1\x019=")))
	assert.Equal(t, SOH, data[len(data)-1])

	// Body length covers everything between the BodyLength field and CheckSum
	fields := strings.Split(strings.TrimSuffix(string(data), "\x01"), "\x01")
	require.True(t, strings.HasPrefix(fields[1], "9="))
	require.True(t, strings.HasPrefix(fields[len(fields)-1], "10="))
	bodyStart := len(fields[0]) + 1 + len(fields[1]) + 1
	bodyEnd := len(data) - len(fields[len(fields)-1]) - 1
	assert.Equal(t, fmt.Sprintf("9=%d", bodyEnd-bodyStart), fields[1])
	assert.Equal(t, fmt.Sprintf("10=%03d", checksum(data[:bodyEnd])), fields[len(fields)-1])
}

func TestEncode_RecomputesStaleLengthAndChecksum(t *testing.T) {
	m := NewMessage().
		Add(TagBeginString, "FIXT.1.1").
		Add(TagBodyLength, "999").
		Add(TagMsgType, MsgTypeHeartbeat).
		Add(TagCheckSum, "000")

	data := mustEncode(t, m)
	msgs, rest, err := Decode(nil, data)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgTypeHeartbeat, msgs[0].MsgType())
}

func TestEncode_ChecksumExcludesTrailer(t *testing.T) {
	data := mustEncode(t, NewMessage().
		Add(TagBeginString, "FIXT.1.1").
		Add(TagMsgType, MsgTypeHeartbeat))

	assert.Equal(t, "8=FIXT.1.1\x019=5\x0135=0\x0110=241\x01", string(data))

	msgs, _, err := Decode(nil, data)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestEncode_Errors(t *testing.T) {
	_, err := Encode(NewMessage().Add(TagMsgType, MsgTypeHeartbeat))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Encode(NewMessage().Add(TagBeginString, "FIXT.1.1").Add(TagText, "a\x01b"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_RoundTripPreservesGroupOrder(t *testing.T) {
	original := sampleSnapshot()
	data := mustEncode(t, original)

	msgs, rest, err := Decode(nil, data)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Len(t, msgs, 1)

	decoded := msgs[0]
	assert.Equal(t, []string{"0", "1"}, decoded.GetAll(TagMDEntryType))
	assert.Equal(t, []string{"98.5", "101.5"}, decoded.GetAll(TagMDEntryPx))
	assert.Equal(t, int64(7), decoded.SeqNum())

	// Re-encoding the decoded message reproduces the same bytes
	assert.Equal(t, data, mustEncode(t, decoded))
}

func TestDecode_SplitAtEveryBoundary(t *testing.T) {
	data := mustEncode(t, sampleSnapshot())
	whole, _, err := Decode(nil, data)
	require.NoError(t, err)
	require.Len(t, whole, 1)

	for i := 0; i <= len(data); i++ {
		var dec Decoder
		first, err := dec.Feed(data[:i])
		require.NoError(t, err, "split at %d", i)
		second, err := dec.Feed(data[i:])
		require.NoError(t, err, "split at %d", i)

		got := append(first, second...)
		require.Len(t, got, 1, "split at %d", i)
		assert.Equal(t, whole[0].Fields, got[0].Fields, "split at %d", i)
		assert.Zero(t, dec.Buffered(), "split at %d", i)
	}
}

func TestDecode_ByteAtATime(t *testing.T) {
	one := mustEncode(t, sampleSnapshot())
	two := mustEncode(t, NewMessage().Add(TagBeginString, "FIXT.1.1").Add(TagMsgType, MsgTypeHeartbeat))
	stream := append(append([]byte{}, one...), two...)

	var dec Decoder
	var got []*Message
	for _, b := range stream {
		msgs, err := dec.Feed([]byte{b})
		require.NoError(t, err)
		got = append(got, msgs...)
	}

	require.Len(t, got, 2)
	assert.Equal(t, MsgTypeMarketDataSnapshot, got[0].MsgType())
	assert.Equal(t, MsgTypeHeartbeat, got[1].MsgType())
}

func TestDecode_MultipleMessagesInOneRead(t *testing.T) {
	var stream []byte
	for i := 1; i <= 3; i++ {
		m := NewMessage().Add(TagBeginString, "FIXT.1.1").Add(TagMsgType, MsgTypeHeartbeat).AddInt(TagMsgSeqNum, int64(i))
		stream = append(stream, mustEncode(t, m)...)
	}
	partial := mustEncode(t, sampleSnapshot())
	stream = append(stream, partial[:10]...)

	msgs, rest, err := Decode(nil, stream)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.SeqNum())
	}
	assert.Equal(t, partial[:10], rest)
}

func TestDecode_SkipsLeadingGarbage(t *testing.T) {
	data := mustEncode(t, sampleSnapshot())
	stream := append([]byte("noise 18=x\x01"), data...)

	msgs, rest, err := Decode(nil, stream)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgTypeMarketDataSnapshot, msgs[0].MsgType())
}

func TestDecode_ChecksumMismatchDropsOnlyThatFrame(t *testing.T) {
	bad := bytes.Replace(mustEncode(t, sampleSnapshot()), []byte("55=AMZ"), []byte("55=AMY"), 1)
	good := mustEncode(t, NewMessage().Add(TagBeginString, "FIXT.1.1").Add(TagMsgType, MsgTypeHeartbeat))

	msgs, rest, err := Decode(nil, append(bad, good...))
	assert.True(t, errors.Is(err, ErrChecksum))
	assert.Empty(t, rest)
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgTypeHeartbeat, msgs[0].MsgType())
}

func TestDecode_BadBodyLengthIsSkipped(t *testing.T) {
	good := mustEncode(t, NewMessage().Add(TagBeginString, "FIXT.1.1").Add(TagMsgType, MsgTypeHeartbeat))
	stream := append([]byte("8=FIXT.1.1\x019=abc\x0135=0\x0110=000\x01"), good...)

	msgs, _, err := Decode(nil, stream)
	assert.ErrorIs(t, err, ErrMalformed)
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgTypeHeartbeat, msgs[0].MsgType())
}

func TestDecode_EmptyInput(t *testing.T) {
	msgs, rest, err := Decode(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, rest)
}

func TestDecode_DoesNotAliasInput(t *testing.T) {
	data := mustEncode(t, sampleSnapshot())
	input := append([]byte{}, data[:20]...)

	_, rest, err := Decode(nil, input)
	require.NoError(t, err)
	input[0] = 'X'
	assert.Equal(t, data[:20], rest)
}
