package zkteco

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/device"
	"github.com/stretchr/testify/require"
)

func encodeTime(t time.Time) uint32 {
	return uint32(((t.Year()%100)*12*31+(int(t.Month())-1)*31+t.Day()-1)*(24*60*60) +
		(t.Hour()*60+t.Minute())*60 + t.Second())
}

func encodeAttendance(punches []device.RawPunch) []byte {
	body := make([]byte, len(punches)*attRecordSize)
	for i, p := range punches {
		r := body[i*attRecordSize:]
		binary.LittleEndian.PutUint16(r[0:], uint16(p.UserSN))
		copy(r[2:26], p.DeviceUser)
		r[26] = byte(p.VerifyMode)
		binary.LittleEndian.PutUint32(r[27:], encodeTime(p.RecordTime))
		r[31] = byte(p.State)
	}
	out := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	return append(out, body...)
}

// fakeTerminal answers the subset of the protocol the client speaks.
type fakeTerminal struct {
	punches    []device.RawPunch
	deviceTime time.Time
	serial     string
	firmware   string
	chunkSize  int // stream the log in chunks when > 0
	silent     bool
	// replayStale resends the previous answer ahead of each new one.
	replayStale bool

	conn     *net.UDPConn
	mu       sync.Mutex
	received []uint16
}

func startTerminal(t *testing.T, ft *fakeTerminal) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	ft.conn = conn
	t.Cleanup(func() { _ = conn.Close() })
	go ft.serve()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func (ft *fakeTerminal) commands() []uint16 {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]uint16(nil), ft.received...)
}

func (ft *fakeTerminal) serve() {
	buf := make([]byte, maxPacketSize)
	var previous [][]byte
	for {
		n, from, err := ft.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		req, err := unmarshalPacket(buf[:n])
		if err != nil {
			continue
		}
		ft.mu.Lock()
		ft.received = append(ft.received, req.Command)
		ft.mu.Unlock()
		if ft.silent {
			continue
		}
		if ft.replayStale {
			for _, b := range previous {
				_, _ = ft.conn.WriteToUDP(b, from)
			}
		}
		previous = previous[:0]
		for _, reply := range ft.handle(req) {
			reply.SessionID = 42
			reply.ReplyID = req.ReplyID
			b := reply.marshal()
			previous = append(previous, b)
			_, _ = ft.conn.WriteToUDP(b, from)
		}
	}
}

func (ft *fakeTerminal) handle(req packet) []packet {
	ack := func(payload []byte) []packet {
		return []packet{{Command: cmdAckOK, Payload: payload}}
	}

	switch req.Command {
	case cmdConnect, cmdExit, cmdFreeData:
		return ack(nil)
	case cmdGetTime:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, encodeTime(ft.deviceTime))
		return ack(b)
	case cmdOptionsRRQ:
		return ack([]byte("~SerialNumber=" + ft.serial + "\x00"))
	case cmdGetVersion:
		return ack([]byte(ft.firmware + "\x00"))
	case cmdFreeSizes:
		b := make([]byte, 80)
		binary.LittleEndian.PutUint32(b[freeSizesRecords*4:], uint32(len(ft.punches)))
		return ack(b)
	case cmdAttLogRRQ:
		data := encodeAttendance(ft.punches)
		if ft.chunkSize <= 0 {
			return []packet{{Command: cmdData, Payload: data}}
		}
		size := make([]byte, 4)
		binary.LittleEndian.PutUint32(size, uint32(len(data)))
		replies := []packet{{Command: cmdPrepareData, Payload: size}}
		for off := 0; off < len(data); off += ft.chunkSize {
			end := min(off+ft.chunkSize, len(data))
			replies = append(replies, packet{Command: cmdData, Payload: data[off:end]})
		}
		return append(replies, packet{Command: cmdAckOK})
	default:
		return []packet{{Command: cmdAckError}}
	}
}
