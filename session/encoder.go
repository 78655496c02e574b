package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

var errCorruptSession = errors.New("corrupt session blob")

// Encode serializes s without its SessionID, which is the Redis key.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(2 + len(s.UserID) + 32 + 16)

	buf.WriteByte(sessionFormatVersionCurrent)

	if s.UserID == "" {
		return nil, errors.New("userID is required")
	}
	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	buf.Write(s.RefreshHash[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode].
func Decode(data []byte) (*Session, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, errCorruptSession
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("unsupported session version")
	}

	userLen, err := r.ReadByte()
	if err != nil {
		return nil, errCorruptSession
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(r, userID); err != nil {
		return nil, errCorruptSession
	}

	s := &Session{UserID: string(userID)}
	if _, err := io.ReadFull(r, s.RefreshHash[:]); err != nil {
		return nil, errCorruptSession
	}
	if err := binary.Read(r, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, errCorruptSession
	}
	if err := binary.Read(r, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, errCorruptSession
	}
	if r.Len() != 0 {
		return nil, errCorruptSession
	}

	return s, nil
}
