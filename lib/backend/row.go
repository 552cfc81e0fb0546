package backend

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NotFoundRow is the row a backend returns when the requested sequence is not defined.
// It must be treated as a fatal configuration error, never as a transient one.
const NotFoundRow = "-999999999,null"

const (
	nextvalPrefix = "SELECT dseq_nextval('"
	nextvalSuffix = "')"
)

// NextvalQuery returns the query that atomically reserves the next segment of a sequence.
// The text only depends on the sequence name.
func NextvalQuery(name string) string {
	return nextvalPrefix + strings.ReplaceAll(name, "'", "''") + nextvalSuffix
}

// ParseNextvalQuery extracts the sequence name from a query built by NextvalQuery.
func ParseNextvalQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if !strings.HasPrefix(q, nextvalPrefix) || !strings.HasSuffix(q, nextvalSuffix) {
		return "", fmt.Errorf("not a dseq_nextval query: %q", query)
	}
	quoted := q[len(nextvalPrefix) : len(q)-len(nextvalSuffix)]
	// a single quote must always be doubled inside the literal
	if strings.Count(quoted, "'")%2 != 0 {
		return "", fmt.Errorf("unbalanced quotes in query: %q", query)
	}
	return strings.ReplaceAll(quoted, "''", "'"), nil
}

// FormatSegmentRow encodes a reserved segment as returned by dseq_nextval.
func FormatSegmentRow(base, span int64) []byte {
	return []byte(strconv.FormatInt(base, 10) + "," + strconv.FormatInt(span, 10))
}

// ParseSegmentRow decodes a "base,span" row. The segment [base, base+span) must be
// non-empty and must not overflow.
func ParseSegmentRow(row []byte) (base, span int64, err error) {
	items := strings.Split(string(row), ",")
	if len(items) != 2 {
		return 0, 0, fmt.Errorf("expected 'base,span' but got %q", row)
	}
	base, err = strconv.ParseInt(strings.TrimSpace(items[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid base in %q: %w", row, err)
	}
	span, err = strconv.ParseInt(strings.TrimSpace(items[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid span in %q: %w", row, err)
	}
	if span <= 0 {
		return 0, 0, fmt.Errorf("span must be positive, got %d", span)
	}
	if base > math.MaxInt64-span {
		return 0, 0, fmt.Errorf("segment %d+%d overflows", base, span)
	}
	return base, span, nil
}

// --------------------------------------------------------------------------
// Error packets
// --------------------------------------------------------------------------

// ErrorPacket is the payload passed to IResponseHandler.OnError.
// Format: 2 bytes code length (big endian), code, message.
type ErrorPacket struct {
	Code    string
	Message string
}

func (p ErrorPacket) Bytes() []byte {
	b := make([]byte, 2+len(p.Code)+len(p.Message))
	binary.BigEndian.PutUint16(b[:2], uint16(len(p.Code)))
	copy(b[2:], p.Code)
	copy(b[2+len(p.Code):], p.Message)
	return b
}

// ParseErrorPacket decodes a payload produced by ErrorPacket.Bytes.
// Payloads that do not follow the format are returned as plain message.
func ParseErrorPacket(payload []byte) ErrorPacket {
	if len(payload) < 2 {
		return ErrorPacket{Message: string(payload)}
	}
	codeLen := int(binary.BigEndian.Uint16(payload[:2]))
	if 2+codeLen > len(payload) {
		return ErrorPacket{Message: string(payload)}
	}
	return ErrorPacket{
		Code:    string(payload[2 : 2+codeLen]),
		Message: string(payload[2+codeLen:]),
	}
}

func (p ErrorPacket) String() string {
	if p.Code == "" {
		return p.Message
	}
	return p.Code + " " + p.Message
}
