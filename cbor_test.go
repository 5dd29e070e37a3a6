package hashdag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePageOpsRoundTrip(t *testing.T) {
	ops := []PageOp{
		{PageID: 1, Offset: 2, Words: []uint32{3, 4, 5}},
		{PageID: 9, Unbind: true},
	}

	data, err := EncodePageOps(ops)
	require.NoError(t, err)

	got, err := DecodePageOps(data)
	require.NoError(t, err)
	require.Equal(t, ops, got)
}

func TestEncodePageOpsDeterministic(t *testing.T) {
	ops := []PageOp{{PageID: 1, Offset: 0, Words: []uint32{1}}}

	a, err := EncodePageOps(ops)
	require.NoError(t, err)
	b, err := EncodePageOps(ops)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDecodePageOpsNilData(t *testing.T) {
	ops, err := DecodePageOps(nil)
	require.NoError(t, err)
	require.Nil(t, ops)
}

func TestDecodePageOpsInvalid(t *testing.T) {
	_, err := DecodePageOps([]byte{0xFF, 0xFF})
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
}
