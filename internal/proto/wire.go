package proto

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer accumulates a packet's encoded body. Fixed fields are
// little-endian; variable-length fields are length-prefixed (uint32 LE).
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{buf: make([]byte, 0, 256)} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *Writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *Writer) i64(v int64)  { w.u64(uint64(v)) }
func (w *Writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}
func (w *Writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *Writer) bytesField(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) str(s string) { w.bytesField([]byte(s)) }

func (w *Writer) vec3(v Vec3) { w.f32(v.X); w.f32(v.Y); w.f32(v.Z) }
func (w *Writer) quat(q Quat) { w.f32(q.X); w.f32(q.Y); w.f32(q.Z); w.f32(q.W) }
func (w *Writer) pose(p Pose) { w.quat(p.Orientation); w.vec3(p.Position) }
func (w *Writer) fov(f Fov) {
	w.f32(f.AngleLeft)
	w.f32(f.AngleRight)
	w.f32(f.AngleUp)
	w.f32(f.AngleDown)
}
func (w *Writer) relation(r SpaceRelation) {
	w.pose(r.Pose)
	w.vec3(r.LinearVelocity)
	w.vec3(r.AngularVelocity)
	w.u8(uint8(r.RelationFlags))
}

// Reader consumes a packet body produced by Writer, in the same order.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

var errShortBuffer = fmt.Errorf("proto: short buffer")

func (r *Reader) need(n int) error {
	if r.off+n > len(r.buf) {
		return errShortBuffer
	}
	return nil
}

func (r *Reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *Reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *Reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *Reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *Reader) f32() (float32, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *Reader) bytesField() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return b, nil
}

func (r *Reader) str() (string, error) {
	b, err := r.bytesField()
	return string(b), err
}

func (r *Reader) vec3() (Vec3, error) {
	x, err := r.f32()
	if err != nil {
		return Vec3{}, err
	}
	y, err := r.f32()
	if err != nil {
		return Vec3{}, err
	}
	z, err := r.f32()
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{X: x, Y: y, Z: z}, nil
}

func (r *Reader) quat() (Quat, error) {
	x, err := r.f32()
	if err != nil {
		return Quat{}, err
	}
	y, err := r.f32()
	if err != nil {
		return Quat{}, err
	}
	z, err := r.f32()
	if err != nil {
		return Quat{}, err
	}
	w, err := r.f32()
	if err != nil {
		return Quat{}, err
	}
	return Quat{X: x, Y: y, Z: z, W: w}, nil
}

func (r *Reader) pose() (Pose, error) {
	o, err := r.quat()
	if err != nil {
		return Pose{}, err
	}
	p, err := r.vec3()
	if err != nil {
		return Pose{}, err
	}
	return Pose{Orientation: o, Position: p}, nil
}

func (r *Reader) fov() (Fov, error) {
	l, err := r.f32()
	if err != nil {
		return Fov{}, err
	}
	rr, err := r.f32()
	if err != nil {
		return Fov{}, err
	}
	u, err := r.f32()
	if err != nil {
		return Fov{}, err
	}
	d, err := r.f32()
	if err != nil {
		return Fov{}, err
	}
	return Fov{AngleLeft: l, AngleRight: rr, AngleUp: u, AngleDown: d}, nil
}

func (r *Reader) relation() (SpaceRelation, error) {
	p, err := r.pose()
	if err != nil {
		return SpaceRelation{}, err
	}
	lv, err := r.vec3()
	if err != nil {
		return SpaceRelation{}, err
	}
	av, err := r.vec3()
	if err != nil {
		return SpaceRelation{}, err
	}
	flags, err := r.u8()
	if err != nil {
		return SpaceRelation{}, err
	}
	return SpaceRelation{Pose: p, LinearVelocity: lv, AngularVelocity: av, RelationFlags: RelationFlags(flags)}, nil
}

// WriteLengthPrefixed writes a uint32 LE length prefix followed by body to
// w, the control channel's framing.
func WriteLengthPrefixed(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadLengthPrefixed reads one length-prefixed body from r.
func ReadLengthPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
