// Package rw reads and writes the little-endian binary layouts shared by the
// navmesh tile data and the cache files.
package rw

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var ErrShortBuffer = errors.New("rw: unexpected end of data")

// ReaderWriter is a byte buffer with fixed-width little-endian accessors.
// Read errors are sticky: after the first short read every accessor returns
// zero values and Err reports the failure.
type ReaderWriter struct {
	order   binary.ByteOrder
	dataBuf [8]byte
	rw      bytes.Buffer
	err     error
}

func NewNavMeshDataBinWriter() *ReaderWriter {
	return &ReaderWriter{order: binary.LittleEndian}
}

func NewNavMeshDataBinReader(data []byte) *ReaderWriter {
	d := &ReaderWriter{order: binary.LittleEndian}
	d.rw.Write(data)
	return d
}

func (w *ReaderWriter) Err() error { return w.err }

func (w *ReaderWriter) read(n int) []byte {
	if w.err != nil {
		return nil
	}
	buf := w.dataBuf[:n]
	if _, err := io.ReadFull(&w.rw, buf); err != nil {
		w.err = ErrShortBuffer
		return nil
	}
	return buf
}

func (w *ReaderWriter) ReadUInt8() uint8 {
	b := w.read(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (w *ReaderWriter) ReadUInt16() uint16 {
	b := w.read(2)
	if b == nil {
		return 0
	}
	return w.order.Uint16(b)
}

func (w *ReaderWriter) ReadUInt32() uint32 {
	b := w.read(4)
	if b == nil {
		return 0
	}
	return w.order.Uint32(b)
}

func (w *ReaderWriter) ReadInt32() int32 { return int32(w.ReadUInt32()) }

func (w *ReaderWriter) ReadFloat32() float32 { return math.Float32frombits(w.ReadUInt32()) }

func (w *ReaderWriter) ReadUInt8s(value []uint8) {
	for i := range value {
		value[i] = w.ReadUInt8()
	}
}

func (w *ReaderWriter) ReadUInt16s(value []uint16) {
	for i := range value {
		value[i] = w.ReadUInt16()
	}
}

func (w *ReaderWriter) ReadInt32s(value []int32) {
	for i := range value {
		value[i] = w.ReadInt32()
	}
}

func (w *ReaderWriter) ReadUInt32s(value []uint32) {
	for i := range value {
		value[i] = w.ReadUInt32()
	}
}

func (w *ReaderWriter) ReadFloat32s(value []float32) {
	for i := range value {
		value[i] = w.ReadFloat32()
	}
}

// ReadBytes returns the next n bytes.
func (w *ReaderWriter) ReadBytes(n int) []byte {
	if w.err != nil {
		return nil
	}
	if n < 0 || n > w.rw.Len() {
		w.err = ErrShortBuffer
		return nil
	}
	res := make([]byte, n)
	copy(res, w.rw.Next(n))
	return res
}

func (w *ReaderWriter) Skip(size int) {
	if w.err != nil {
		return
	}
	if size > w.rw.Len() {
		w.err = ErrShortBuffer
		return
	}
	w.rw.Next(size)
}

func (w *ReaderWriter) WriteUInt8(v uint8) {
	w.rw.WriteByte(v)
}

func (w *ReaderWriter) WriteUInt16(v uint16) {
	w.order.PutUint16(w.dataBuf[:2], v)
	w.rw.Write(w.dataBuf[:2])
}

func (w *ReaderWriter) WriteUInt32(v uint32) {
	w.order.PutUint32(w.dataBuf[:4], v)
	w.rw.Write(w.dataBuf[:4])
}

func (w *ReaderWriter) WriteInt32(v int32) { w.WriteUInt32(uint32(v)) }

func (w *ReaderWriter) WriteFloat32(v float32) { w.WriteUInt32(math.Float32bits(v)) }

func (w *ReaderWriter) WriteUInt8s(value []uint8) { w.rw.Write(value) }

func (w *ReaderWriter) WriteUInt16s(value []uint16) {
	for _, v := range value {
		w.WriteUInt16(v)
	}
}

func (w *ReaderWriter) WriteInt32s(value []int32) {
	for _, v := range value {
		w.WriteInt32(v)
	}
}

func (w *ReaderWriter) WriteUInt32s(value []uint32) {
	for _, v := range value {
		w.WriteUInt32(v)
	}
}

func (w *ReaderWriter) WriteFloat32s(value []float32) {
	for _, v := range value {
		w.WriteFloat32(v)
	}
}

func (w *ReaderWriter) WriteBytes(value []byte) { w.rw.Write(value) }

func (w *ReaderWriter) PadZero(n int) {
	for i := 0; i < n; i++ {
		w.rw.WriteByte(0)
	}
}

func (w *ReaderWriter) GetWriteBytes() []byte {
	return w.rw.Bytes()
}

// Size is the number of unread (or written) bytes.
func (w *ReaderWriter) Size() int {
	return w.rw.Len()
}

// Align4 returns the padding needed to bring n to a 4-byte boundary.
func Align4(n int) int {
	return ((n + 3) &^ 3) - n
}
