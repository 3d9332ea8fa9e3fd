package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const (
	sessionFormatVersionCurrent = 2
	sessionFormatVersionV1      = 1
)

const (
	profileAbsent  byte = 0
	profilePresent byte = 1
)

// ErrInvalidEncoding is returned by Decode for malformed input.
var ErrInvalidEncoding = errors.New("invalid session encoding")

// Encode serializes s in the current binary format.
//
// Layout (v2): version byte, access token, refresh token, profile flag,
// then when the flag is set: id (int64 BE), username, email, first name,
// last name, gender, image. Strings are uint16 length-prefixed.
// v1 stops after the refresh token.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.WriteByte(sessionFormatVersionCurrent)

	if err := writeString(&buf, s.AccessToken); err != nil {
		return nil, err
	}
	if err := writeString(&buf, s.RefreshToken); err != nil {
		return nil, err
	}

	if s.Profile == nil {
		buf.WriteByte(profileAbsent)
		return buf.Bytes(), nil
	}
	buf.WriteByte(profilePresent)

	p := s.Profile
	if err := binary.Write(&buf, binary.BigEndian, p.ID); err != nil {
		return nil, err
	}
	for _, field := range []string{p.Username, p.Email, p.FirstName, p.LastName, p.Gender, p.Image} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses any supported format version.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent && version != sessionFormatVersionV1 {
		return nil, ErrInvalidEncoding
	}

	s := &Session{}
	if s.AccessToken, err = readString(reader); err != nil {
		return nil, err
	}
	if s.RefreshToken, err = readString(reader); err != nil {
		return nil, err
	}

	if version == sessionFormatVersionV1 {
		if reader.Len() != 0 {
			return nil, ErrInvalidEncoding
		}
		return s, nil
	}

	flag, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	switch flag {
	case profileAbsent:
	case profilePresent:
		p := &Profile{}
		if err := binary.Read(reader, binary.BigEndian, &p.ID); err != nil {
			return nil, err
		}
		for _, dst := range []*string{&p.Username, &p.Email, &p.FirstName, &p.LastName, &p.Gender, &p.Image} {
			if *dst, err = readString(reader); err != nil {
				return nil, err
			}
		}
		s.Profile = p
	default:
		return nil, ErrInvalidEncoding
	}

	if reader.Len() != 0 {
		return nil, ErrInvalidEncoding
	}
	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > math.MaxUint16 {
		return errors.New("session field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
