package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionQueryRoundTrip(t *testing.T) {
	q := ActionQuery{WorkstationID: 2, TrayID: 7}
	decoded, err := DecodeActionQuery(EncodeActionQuery(q))
	require.NoError(t, err)
	assert.Equal(t, q, decoded)
}

func TestActionRspRoundTrip(t *testing.T) {
	rsp := ActionRsp{
		Query:         ActionQuery{WorkstationID: 2, TrayID: 7},
		OrderID:       NoID,
		Action:        Release,
		NextStationID: 3,
	}
	decoded, err := DecodeActionRsp(EncodeActionRsp(rsp))
	require.NoError(t, err)
	assert.Equal(t, rsp, decoded)
}

func TestDecodeActionQueryTooShort(t *testing.T) {
	_, err := DecodeActionQuery([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	q := ActionQuery{WorkstationID: 1, TrayID: 99}
	err := WriteFrame(&buf, Frame{Type: TypeActionQuery, Payload: EncodeActionQuery(q)})
	require.NoError(t, err)

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, TypeActionQuery, f.Type)

	decoded, err := DecodeActionQuery(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, q, decoded)
}

func TestReadFrameTruncatedHeader(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2})
	_, err := ReadFrame(buf)
	assert.Error(t, err)
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, 6)
	header[5] = 10 // claims 10-byte payload
	buf.Write(header)
	_, err := ReadFrame(&buf)
	assert.Error(t, err)
}
