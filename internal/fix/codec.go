package fix

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformed = errors.New("fix: malformed message")
	ErrChecksum  = errors.New("fix: checksum mismatch")
)

// MaxBodyLength bounds the BodyLength a frame may claim before it is treated as garbage.
const MaxBodyLength = 1 << 20

var (
	beginPrefix    = []byte("8=")
	lengthPrefix   = []byte("9=")
	checksumPrefix = []byte("10=")
)

// Encode serializes m as one frame. BeginString is taken from the message and moved
// to the front; BodyLength and CheckSum are always recomputed.
func Encode(m *Message) ([]byte, error) {
	beginString, ok := m.Get(TagBeginString)
	if !ok || beginString == "" {
		return nil, fmt.Errorf("%w: missing BeginString", ErrMalformed)
	}

	var body bytes.Buffer
	for _, f := range m.Fields {
		switch f.Tag {
		case TagBeginString, TagBodyLength, TagCheckSum:
			continue
		}
		if strings.IndexByte(f.Value, SOH) >= 0 {
			return nil, fmt.Errorf("%w: tag %d value contains delimiter", ErrMalformed, f.Tag)
		}
		body.WriteString(strconv.Itoa(f.Tag))
		body.WriteByte('=')
		body.WriteString(f.Value)
		body.WriteByte(SOH)
	}

	out := make([]byte, 0, body.Len()+32)
	out = append(out, beginPrefix...)
	out = append(out, beginString...)
	out = append(out, SOH)
	out = append(out, lengthPrefix...)
	out = strconv.AppendInt(out, int64(body.Len()), 10)
	out = append(out, SOH)
	out = append(out, body.Bytes()...)
	sum := checksum(out)
	out = append(out, checksumPrefix...)
	out = append(out, fmt.Sprintf("%03d", sum)...)
	out = append(out, SOH)
	return out, nil
}

// Decode consumes leftover followed by data and returns every complete message plus
// the bytes of a trailing partial frame. It is a pure function: splitting the same
// stream at any byte boundaries yields the same messages. Frames that cannot be
// parsed are skipped and reported through the returned error; the messages that
// were decoded are returned alongside it.
func Decode(leftover, data []byte) ([]*Message, []byte, error) {
	buf := make([]byte, 0, len(leftover)+len(data))
	buf = append(buf, leftover...)
	buf = append(buf, data...)

	var (
		msgs []*Message
		errs []error
	)
	for {
		start := frameStart(buf)
		if start < 0 {
			// Keep a dangling '8' that may begin the next frame
			if n := len(buf); n > 0 && buf[n-1] == '8' && (n == 1 || buf[n-2] == SOH) {
				return msgs, []byte{'8'}, errors.Join(errs...)
			}
			return msgs, nil, errors.Join(errs...)
		}
		buf = buf[start:]

		end, err := frameEnd(buf)
		if err != nil {
			errs = append(errs, err)
			buf = buf[1:]
			continue
		}
		if end == 0 {
			rest := make([]byte, len(buf))
			copy(rest, buf)
			return msgs, rest, errors.Join(errs...)
		}

		frame := buf[:end]
		buf = buf[end:]
		msg, err := parseFrame(frame)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msgs = append(msgs, msg)
	}
}

// frameStart returns the offset of the next "8=" that begins a field
func frameStart(buf []byte) int {
	offset := 0
	for {
		i := bytes.Index(buf[offset:], beginPrefix)
		if i < 0 {
			return -1
		}
		pos := offset + i
		if pos == 0 || buf[pos-1] == SOH {
			return pos
		}
		offset = pos + 1
	}
}

// frameEnd returns the length of the complete frame at the head of buf,
// 0 if more bytes are needed, or an error if the head is not a valid frame.
func frameEnd(buf []byte) (int, error) {
	bsEnd := bytes.IndexByte(buf, SOH)
	if bsEnd < 0 {
		return 0, nil
	}
	rest := buf[bsEnd+1:]
	if len(rest) < len(lengthPrefix) {
		return 0, nil
	}
	if !bytes.HasPrefix(rest, lengthPrefix) {
		return 0, fmt.Errorf("%w: BodyLength must follow BeginString", ErrMalformed)
	}
	lenEnd := bytes.IndexByte(rest, SOH)
	if lenEnd < 0 {
		if len(rest) > len(lengthPrefix)+7 {
			return 0, fmt.Errorf("%w: unterminated BodyLength", ErrMalformed)
		}
		return 0, nil
	}
	bodyLen, err := strconv.Atoi(string(rest[len(lengthPrefix):lenEnd]))
	if err != nil || bodyLen < 0 || bodyLen > MaxBodyLength {
		return 0, fmt.Errorf("%w: invalid BodyLength %q", ErrMalformed, rest[len(lengthPrefix):lenEnd])
	}

	bodyStart := bsEnd + 1 + lenEnd + 1
	bodyEnd := bodyStart + bodyLen
	if len(buf) < bodyEnd+len(checksumPrefix) {
		return 0, nil
	}
	if !bytes.HasPrefix(buf[bodyEnd:], checksumPrefix) {
		return 0, fmt.Errorf("%w: CheckSum not found at declared BodyLength", ErrMalformed)
	}
	csEnd := bytes.IndexByte(buf[bodyEnd:], SOH)
	if csEnd < 0 {
		if len(buf)-bodyEnd > len(checksumPrefix)+3 {
			return 0, fmt.Errorf("%w: unterminated CheckSum", ErrMalformed)
		}
		return 0, nil
	}
	return bodyEnd + csEnd + 1, nil
}

// parseFrame splits a complete frame into fields and verifies the checksum
func parseFrame(frame []byte) (*Message, error) {
	csStart := bytes.LastIndex(frame, checksumPrefix)
	want, err := strconv.Atoi(string(frame[csStart+len(checksumPrefix) : len(frame)-1]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CheckSum", ErrMalformed)
	}
	if got := checksum(frame[:csStart]); got != want {
		return nil, fmt.Errorf("%w: got %03d, declared %03d", ErrChecksum, got, want)
	}

	msg := NewMessage()
	for _, segment := range bytes.Split(frame[:len(frame)-1], []byte{SOH}) {
		eq := bytes.IndexByte(segment, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("%w: field %q", ErrMalformed, segment)
		}
		tag, err := strconv.Atoi(string(segment[:eq]))
		if err != nil {
			return nil, fmt.Errorf("%w: tag %q", ErrMalformed, segment[:eq])
		}
		msg.Add(tag, string(segment[eq+1:]))
	}
	return msg, nil
}

func checksum(b []byte) int {
	sum := 0
	for _, c := range b {
		sum += int(c)
	}
	return sum % 256
}

// Decoder holds the partial frame carried between reads
type Decoder struct {
	leftover []byte
}

// Feed decodes data appended to whatever was buffered by earlier calls
func (d *Decoder) Feed(data []byte) ([]*Message, error) {
	msgs, rest, err := Decode(d.leftover, data)
	d.leftover = rest
	return msgs, err
}

// Buffered returns the number of bytes held for an incomplete frame
func (d *Decoder) Buffered() int {
	return len(d.leftover)
}

// Reset drops any buffered partial frame
func (d *Decoder) Reset() {
	d.leftover = nil
}
