package message

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestPathRoundTrip(t *testing.T) {
	in := []mgl32.Vec3{{1, 0.5, -2}, {10, 0, 3.25}}
	corners, status, err := DecodePath(EncodePath(in))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, in, corners)
}

func TestEmptyPathHasNoPathStatus(t *testing.T) {
	corners, status, err := DecodePath(EncodePath(nil))
	require.NoError(t, err)
	assert.Equal(t, StatusNoPath, status)
	assert.Empty(t, corners)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b := EncodePath([]mgl32.Vec3{{1, 2, 3}})
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "extra")
	corners, _, err := DecodePath(b)
	require.NoError(t, err)
	assert.Equal(t, []mgl32.Vec3{{1, 2, 3}}, corners)
}

func TestDecodeTruncated(t *testing.T) {
	b := EncodePath([]mgl32.Vec3{{1, 2, 3}})
	_, _, err := DecodePath(b[:len(b)-4])
	assert.ErrorIs(t, err, ErrMalformed)
}
