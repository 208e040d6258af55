package usbtmc

import (
	"encoding/binary"
	"fmt"
)

const (
	msgDevDepMsgOut        = 1
	msgRequestDevDepMsgIn  = 2
	headerSize             = 12
	attrEOM           byte = 0x01
)

// tagger hands out bTag values 1..255, skipping zero
type tagger struct {
	last uint8
}

func (t *tagger) next() uint8 {
	t.last++
	if t.last == 0 {
		t.last = 1
	}
	return t.last
}

// encodeOut builds a DEV_DEP_MSG_OUT transfer carrying payload, padded to a
// four byte boundary.
func encodeOut(tag uint8, payload []byte) []byte {
	size := headerSize + len(payload)
	if pad := size % 4; pad != 0 {
		size += 4 - pad
	}

	buf := make([]byte, size)
	buf[0] = msgDevDepMsgOut
	buf[1] = tag
	buf[2] = ^tag
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	buf[8] = attrEOM
	copy(buf[headerSize:], payload)

	return buf
}

// encodeRequestIn builds a REQUEST_DEV_DEP_MSG_IN header asking for at most
// maxSize bytes.
func encodeRequestIn(tag uint8, maxSize uint32) []byte {
	buf := make([]byte, headerSize)
	buf[0] = msgRequestDevDepMsgIn
	buf[1] = tag
	buf[2] = ^tag
	binary.LittleEndian.PutUint32(buf[4:8], maxSize)
	return buf
}

// inHeader is the header of a DEV_DEP_MSG_IN transfer
type inHeader struct {
	tag          uint8
	transferSize uint32
	eom          bool
}

func decodeIn(buf []byte) (inHeader, error) {
	if len(buf) < headerSize {
		return inHeader{}, fmt.Errorf("short DEV_DEP_MSG_IN header: %d bytes", len(buf))
	}
	if buf[0] != msgRequestDevDepMsgIn {
		return inHeader{}, fmt.Errorf("unexpected MsgID %d", buf[0])
	}
	if buf[1] != ^buf[2] {
		return inHeader{}, fmt.Errorf("corrupt bTag %d/%d", buf[1], buf[2])
	}

	return inHeader{
		tag:          buf[1],
		transferSize: binary.LittleEndian.Uint32(buf[4:8]),
		eom:          buf[8]&attrEOM != 0,
	}, nil
}
