package wire

import "encoding/binary"

// LogInterval tags which cadence a log sub-stream reports at.
type LogInterval uint32

const (
	LogIntervalPerFrame      LogInterval = 0
	LogIntervalPerLayerWrite LogInterval = 1
	LogIntervalPerSession    LogInterval = 2
)

// LogInit declares the column names for a log sub-stream (C->S). Wire
// layout: tag(4) interval(4) then NUL-separated column names, NUL-terminated.
type LogInit struct {
	Interval LogInterval
	Columns  []string
}

func (l LogInit) Encode() []byte {
	var body []byte
	for _, c := range l.Columns {
		body = append(body, []byte(c)...)
		body = append(body, 0)
	}
	b := make([]byte, TagSize+4+len(body))
	binary.LittleEndian.PutUint32(b, uint32(TypeLogInit))
	binary.LittleEndian.PutUint32(b[TagSize:], uint32(l.Interval))
	copy(b[TagSize+4:], body)
	return b
}

func DecodeLogInit(payload []byte) (LogInit, error) {
	var l LogInit
	if len(payload) < 4 {
		return l, &ErrShortPacket{Type: TypeLogInit, Got: len(payload), Want: 4}
	}
	l.Interval = LogInterval(binary.LittleEndian.Uint32(payload[0:]))
	rest := payload[4:]
	start := 0
	for i, c := range rest {
		if c == 0 {
			if i > start {
				l.Columns = append(l.Columns, string(rest[start:i]))
			}
			start = i + 1
		}
	}
	return l, nil
}

// LogWrite appends one row of float samples to a log sub-stream (C->S).
// Wire layout: tag(4) interval(4) then 4*N floats (N inferred from payload length).
type LogWrite struct {
	Interval LogInterval
	Values   []float32
}

func (l LogWrite) Encode() []byte {
	b := make([]byte, TagSize+4+len(l.Values)*4)
	binary.LittleEndian.PutUint32(b, uint32(TypeLogWrite))
	binary.LittleEndian.PutUint32(b[TagSize:], uint32(l.Interval))
	off := TagSize + 4
	for _, v := range l.Values {
		binary.LittleEndian.PutUint32(b[off:], float32bits(v))
		off += 4
	}
	return b
}

func DecodeLogWrite(payload []byte) (LogWrite, error) {
	var l LogWrite
	if len(payload) < 4 {
		return l, &ErrShortPacket{Type: TypeLogWrite, Got: len(payload), Want: 4}
	}
	l.Interval = LogInterval(binary.LittleEndian.Uint32(payload[0:]))
	rest := payload[4:]
	if len(rest)%4 != 0 {
		return l, &ErrShortPacket{Type: TypeLogWrite, Got: len(rest), Want: (len(rest) / 4) * 4}
	}
	l.Values = make([]float32, len(rest)/4)
	for i := range l.Values {
		l.Values[i] = float32frombits(binary.LittleEndian.Uint32(rest[i*4:]))
	}
	return l, nil
}

// ServerAction is the opaque event id carried by ServerEvent packets (S->C),
// used by the study-capture harness to step through scene conditions.
type ServerAction uint32

const (
	ServerActionNextCondition     ServerAction = 0
	ServerActionPreviousCondition ServerAction = 1
)

// ServerEvent wraps an opaque event id.
type ServerEvent struct {
	Action ServerAction
}

func (s ServerEvent) Encode() []byte {
	b := make([]byte, TagSize+4)
	binary.LittleEndian.PutUint32(b, uint32(TypeServerEvent))
	binary.LittleEndian.PutUint32(b[TagSize:], uint32(s.Action))
	return b
}

func DecodeServerEvent(payload []byte) (ServerEvent, error) {
	var s ServerEvent
	if len(payload) < 4 {
		return s, &ErrShortPacket{Type: TypeServerEvent, Got: len(payload), Want: 4}
	}
	s.Action = ServerAction(binary.LittleEndian.Uint32(payload))
	return s, nil
}

// EncodeSessionDestroy returns the empty-payload SessionDestroy packet.
func EncodeSessionDestroy() []byte {
	b := make([]byte, TagSize)
	binary.LittleEndian.PutUint32(b, uint32(TypeSessionDestroy))
	return b
}
