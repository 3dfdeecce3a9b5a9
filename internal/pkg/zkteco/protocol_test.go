package zkteco

import (
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacket_MarshalRoundTrip(t *testing.T) {
	in := packet{Command: cmdGetTime, SessionID: 7, ReplyID: 3, Payload: []byte{1, 2, 3}}

	out, err := unmarshalPacket(in.marshal())
	require.NoError(t, err)
	assert.Equal(t, in.Command, out.Command)
	assert.Equal(t, in.SessionID, out.SessionID)
	assert.Equal(t, in.ReplyID, out.ReplyID)
	assert.Equal(t, in.Payload, out.Payload)
}

func TestPacket_RejectsCorruption(t *testing.T) {
	raw := packet{Command: cmdConnect, ReplyID: 1, Payload: []byte("abc")}.marshal()
	raw[len(raw)-1] ^= 0xff

	_, err := unmarshalPacket(raw)
	assert.ErrorIs(t, err, device.ErrDeviceProtocol)

	_, err = unmarshalPacket([]byte{1, 2, 3})
	assert.ErrorIs(t, err, device.ErrDeviceProtocol)
}

func TestDecodeTime(t *testing.T) {
	want := time.Date(2024, 1, 8, 9, 12, 5, 0, time.UTC)
	assert.Equal(t, want, decodeTime(encodeTime(want), time.UTC))

	jakarta := time.FixedZone("WIB", 7*3600)
	got := decodeTime(encodeTime(want), jakarta)
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, want.Add(-7*time.Hour), got.UTC())
}

func TestDecodeAttendance(t *testing.T) {
	punches := []device.RawPunch{
		{UserSN: 1, DeviceUser: "7", RecordTime: time.Date(2024, 1, 8, 9, 12, 0, 0, time.UTC), State: 0, VerifyMode: 1},
		{UserSN: 2, DeviceUser: "1042", RecordTime: time.Date(2024, 1, 8, 17, 30, 0, 0, time.UTC), State: 1, VerifyMode: 15},
	}

	got, err := decodeAttendance(encodeAttendance(punches), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, punches, got)

	t.Run("truncated", func(t *testing.T) {
		data := encodeAttendance(punches)
		_, err := decodeAttendance(data[:len(data)-10], time.UTC)
		assert.ErrorIs(t, err, device.ErrDeviceProtocol)
	})

	t.Run("empty", func(t *testing.T) {
		got, err := decodeAttendance(nil, time.UTC)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestOptionValue(t *testing.T) {
	assert.Equal(t, "ABC123", optionValue([]byte("~SerialNumber=ABC123\x00\x00")))
	assert.Equal(t, "plain", optionValue([]byte("plain")))
}
