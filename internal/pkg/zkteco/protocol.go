package zkteco

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/device"
)

// Command codes of the terminal UDP protocol.
const (
	cmdConnect     uint16 = 1000
	cmdExit        uint16 = 1001
	cmdOptionsRRQ  uint16 = 11
	cmdAttLogRRQ   uint16 = 13
	cmdFreeSizes   uint16 = 50
	cmdGetTime     uint16 = 201
	cmdGetVersion  uint16 = 1100
	cmdPrepareData uint16 = 1500
	cmdData        uint16 = 1501
	cmdFreeData    uint16 = 1502
	cmdAckOK       uint16 = 2000
	cmdAckError    uint16 = 2001
	cmdAckUnauth   uint16 = 2005
)

const (
	headerSize       = 8
	attRecordSize    = 40
	maxPacketSize    = 65507
	freeSizesRecords = 8 // index of the attendance record count in the free sizes reply
)

// packet is one datagram: an 8 byte little endian header and a payload.
type packet struct {
	Command   uint16
	Checksum  uint16
	SessionID uint16
	ReplyID   uint16
	Payload   []byte
}

func (p packet) marshal() []byte {
	buf := make([]byte, headerSize+len(p.Payload))
	binary.LittleEndian.PutUint16(buf[0:], p.Command)
	binary.LittleEndian.PutUint16(buf[4:], p.SessionID)
	binary.LittleEndian.PutUint16(buf[6:], p.ReplyID)
	copy(buf[headerSize:], p.Payload)
	binary.LittleEndian.PutUint16(buf[2:], checksum(buf))
	return buf
}

func unmarshalPacket(b []byte) (packet, error) {
	if len(b) < headerSize {
		return packet{}, fmt.Errorf("%w: short packet of %d bytes", device.ErrDeviceProtocol, len(b))
	}
	p := packet{
		Command:   binary.LittleEndian.Uint16(b[0:]),
		Checksum:  binary.LittleEndian.Uint16(b[2:]),
		SessionID: binary.LittleEndian.Uint16(b[4:]),
		ReplyID:   binary.LittleEndian.Uint16(b[6:]),
		Payload:   append([]byte(nil), b[headerSize:]...),
	}

	verify := append([]byte(nil), b...)
	binary.LittleEndian.PutUint16(verify[2:], 0)
	if sum := checksum(verify); sum != p.Checksum {
		return packet{}, fmt.Errorf("%w: checksum mismatch (got %#04x, want %#04x)", device.ErrDeviceProtocol, p.Checksum, sum)
	}
	return p, nil
}

// checksum is the one's complement of the 16 bit word sum with end-around
// folding; the checksum field itself must be zero.
func checksum(b []byte) uint16 {
	var sum uint32
	for len(b) > 1 {
		sum += uint32(binary.LittleEndian.Uint16(b))
		if sum > 0xffff {
			sum -= 0xffff
		}
		b = b[2:]
	}
	if len(b) == 1 {
		sum += uint32(b[0])
	}
	for sum > 0xffff {
		sum -= 0xffff
	}
	return uint16(^sum)
}

// decodeTime unpacks the terminal's packed wall clock. The terminal has no
// notion of timezone; loc says where its clock is set.
func decodeTime(v uint32, loc *time.Location) time.Time {
	second := int(v % 60)
	v /= 60
	minute := int(v % 60)
	v /= 60
	hour := int(v % 24)
	v /= 24
	day := int(v%31) + 1
	v /= 31
	month := time.Month(v%12) + 1
	v /= 12
	year := int(v) + 2000
	return time.Date(year, month, day, hour, minute, second, 0, loc)
}

// decodeAttendance parses the attendance log blob: a 4 byte length prefix
// followed by fixed size records.
func decodeAttendance(data []byte, loc *time.Location) ([]device.RawPunch, error) {
	if len(data) < 4 {
		return nil, nil
	}
	size := int(binary.LittleEndian.Uint32(data))
	data = data[4:]
	if size > len(data) {
		return nil, fmt.Errorf("%w: attendance log truncated (%d of %d bytes)", device.ErrDeviceProtocol, len(data), size)
	}
	data = data[:size]
	if size%attRecordSize != 0 {
		return nil, fmt.Errorf("%w: attendance log of %d bytes is not a multiple of %d", device.ErrDeviceProtocol, size, attRecordSize)
	}

	punches := make([]device.RawPunch, 0, size/attRecordSize)
	for off := 0; off < size; off += attRecordSize {
		r := data[off : off+attRecordSize]
		punches = append(punches, device.RawPunch{
			UserSN:     int(binary.LittleEndian.Uint16(r[0:])),
			DeviceUser: cString(r[2:26]),
			VerifyMode: int(r[26]),
			RecordTime: decodeTime(binary.LittleEndian.Uint32(r[27:]), loc),
			State:      int(r[31]),
		})
	}
	return punches, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}

// optionValue extracts the value of a "~Key=Value\x00" options reply.
func optionValue(payload []byte) string {
	s := cString(payload)
	if _, value, ok := strings.Cut(s, "="); ok {
		return value
	}
	return s
}
