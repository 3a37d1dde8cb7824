// Package message encodes path query results in protobuf wire format so they
// can be handed to other processes without a generated schema.
//
//	message Point { float x = 1; float y = 2; float z = 3; }
//	message Path  { repeated Point corners = 1; uint32 status = 2; }
package message

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	StatusOK     uint32 = 0
	StatusNoPath uint32 = 1
)

const (
	fieldPathCorners protowire.Number = 1
	fieldPathStatus  protowire.Number = 2

	fieldPointX protowire.Number = 1
	fieldPointY protowire.Number = 2
	fieldPointZ protowire.Number = 3
)

var ErrMalformed = errors.New("message: malformed path")

// EncodePath writes corners as a Path message. An empty path is encoded with
// StatusNoPath.
func EncodePath(corners []mgl32.Vec3) []byte {
	var b []byte
	for _, c := range corners {
		var p []byte
		p = appendFloat(p, fieldPointX, c[0])
		p = appendFloat(p, fieldPointY, c[1])
		p = appendFloat(p, fieldPointZ, c[2])
		b = protowire.AppendTag(b, fieldPathCorners, protowire.BytesType)
		b = protowire.AppendBytes(b, p)
	}
	status := StatusOK
	if len(corners) == 0 {
		status = StatusNoPath
	}
	b = protowire.AppendTag(b, fieldPathStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(status))
	return b
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// DecodePath parses a Path message. Unknown fields are skipped.
func DecodePath(b []byte) (corners []mgl32.Vec3, status uint32, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldPathCorners && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			p, err := decodePoint(v)
			if err != nil {
				return nil, 0, err
			}
			corners = append(corners, p)
			n = m
		case num == fieldPathStatus && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			status = uint32(v)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return corners, status, nil
}

func decodePoint(b []byte) (p mgl32.Vec3, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.Fixed32Type && num >= fieldPointX && num <= fieldPointZ {
			v, m := protowire.ConsumeFixed32(b)
			if m < 0 {
				return p, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			p[num-fieldPointX] = math.Float32frombits(v)
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return p, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return p, nil
}
