package usbtmc

import (
	"encoding/binary"
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOut(t *testing.T) {
	buf := encodeOut(7, []byte("*IDN?\n"))

	require.Len(t, buf, 20) // 12 + 6 padded to 20
	assert.Equal(t, byte(msgDevDepMsgOut), buf[0])
	assert.Equal(t, byte(7), buf[1])
	assert.Equal(t, ^byte(7), buf[2])
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(buf[4:8]))
	assert.Equal(t, attrEOM, buf[8])
	assert.Equal(t, "*IDN?\n", string(buf[12:18]))
	assert.Equal(t, []byte{0, 0}, buf[18:])
}

func TestEncodeOut_Aligned(t *testing.T) {
	assert.Len(t, encodeOut(1, []byte("ABCD")), 16)
}

func TestEncodeRequestIn(t *testing.T) {
	buf := encodeRequestIn(3, 1024)

	require.Len(t, buf, headerSize)
	assert.Equal(t, byte(msgRequestDevDepMsgIn), buf[0])
	assert.Equal(t, uint32(1024), binary.LittleEndian.Uint32(buf[4:8]))
}

func TestDecodeIn(t *testing.T) {
	buf := make([]byte, headerSize+3)
	buf[0] = msgRequestDevDepMsgIn
	buf[1] = 9
	buf[2] = ^byte(9)
	binary.LittleEndian.PutUint32(buf[4:8], 3)
	buf[8] = attrEOM
	copy(buf[headerSize:], "1\n")

	h, err := decodeIn(buf)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), h.tag)
	assert.Equal(t, uint32(3), h.transferSize)
	assert.True(t, h.eom)

	_, err = decodeIn(buf[:4])
	assert.Error(t, err)

	buf[2] = 0
	_, err = decodeIn(buf)
	assert.Error(t, err)
}

func TestTagger_SkipsZero(t *testing.T) {
	tg := tagger{last: 254}
	assert.Equal(t, uint8(255), tg.next())
	assert.Equal(t, uint8(1), tg.next())
}

func TestFindInterface(t *testing.T) {
	desc := &gousb.DeviceDesc{
		Configs: map[int]gousb.ConfigDesc{
			1: {
				Number: 1,
				Interfaces: []gousb.InterfaceDesc{
					{Number: 0, AltSettings: []gousb.InterfaceSetting{{Class: gousb.ClassVendorSpec}}},
					{Number: 1, AltSettings: []gousb.InterfaceSetting{{Number: 1, Alternate: 0, Class: classApplication, SubClass: subclassTMC}}},
				},
			},
		},
	}

	cfg, intf, alt, ok := findInterface(desc)
	require.True(t, ok)
	assert.Equal(t, 1, cfg)
	assert.Equal(t, 1, intf)
	assert.Equal(t, 0, alt)

	_, _, _, ok = findInterface(&gousb.DeviceDesc{})
	assert.False(t, ok)
}

func TestDeviceInfo_Address(t *testing.T) {
	info := DeviceInfo{VID: 0x0957, PID: 0x0118, Serial: "MY43021010"}
	assert.Equal(t, "USB::0x0957::0x0118::MY43021010::INSTR", info.Address())
}
