package fix

import (
	"strconv"
	"strings"
)

// Field is a single tag=value pair
type Field struct {
	Tag   int
	Value string
}

// Message is an ordered sequence of fields. Order is significant: repeating
// groups are recovered from field position, not from tag uniqueness.
type Message struct {
	Fields []Field
}

// NewMessage creates an empty message
func NewMessage() *Message {
	return &Message{Fields: make([]Field, 0, 16)}
}

// Add appends a field and returns the message for chaining
func (m *Message) Add(tag int, value string) *Message {
	m.Fields = append(m.Fields, Field{Tag: tag, Value: value})
	return m
}

// AddInt appends an integer field
func (m *Message) AddInt(tag int, value int64) *Message {
	return m.Add(tag, strconv.FormatInt(value, 10))
}

// Get returns the first value for tag
func (m *Message) Get(tag int) (string, bool) {
	for _, f := range m.Fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

// GetAll returns every value for tag in message order
func (m *Message) GetAll(tag int) []string {
	var out []string
	for _, f := range m.Fields {
		if f.Tag == tag {
			out = append(out, f.Value)
		}
	}
	return out
}

// Has reports whether tag is present
func (m *Message) Has(tag int) bool {
	_, ok := m.Get(tag)
	return ok
}

// MsgType returns the value of tag 35
func (m *Message) MsgType() string {
	v, _ := m.Get(TagMsgType)
	return v
}

// SeqNum returns the value of tag 34, or 0 when absent or malformed
func (m *Message) SeqNum() int64 {
	v, ok := m.Get(TagMsgSeqNum)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// String renders the message with '|' in place of SOH, for logs
func (m *Message) String() string {
	var b strings.Builder
	for _, f := range m.Fields {
		b.WriteString(strconv.Itoa(f.Tag))
		b.WriteByte('=')
		b.WriteString(f.Value)
		b.WriteByte('|')
	}
	return b.String()
}
