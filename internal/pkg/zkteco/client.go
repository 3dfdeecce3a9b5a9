// Package zkteco talks to ZKTeco style biometric terminals over their UDP
// protocol and adapts them to device.Client.
package zkteco

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/device"
)

// Options bounds the calls made to a terminal.
type Options struct {
	ConnectTimeout time.Duration
	FetchTimeout   time.Duration
	InfoTimeout    time.Duration

	// BindAttempts caps how many local ports are tried per session.
	BindAttempts int
	// BindBackoff is the linear backoff step between bind attempts.
	BindBackoff time.Duration

	// Location is the timezone the terminal clocks are set to.
	Location *time.Location
}

const maxLogSize = 64 << 20

type Client struct {
	opts     Options
	pickPort func() int
}

var _ device.Client = (*Client)(nil)

func NewClient(opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 25 * time.Second
	}
	if opts.InfoTimeout <= 0 {
		opts.InfoTimeout = 5 * time.Second
	}
	if opts.BindAttempts < 1 {
		opts.BindAttempts = 3
	}
	if opts.BindBackoff <= 0 {
		opts.BindBackoff = 100 * time.Millisecond
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Client{opts: opts, pickPort: ephemeralPort}
}

// ephemeralPort picks a port from the IANA dynamic range.
func ephemeralPort() int {
	return 49152 + rand.IntN(65535-49152+1)
}

type session struct {
	address string
	conn    *net.UDPConn
	remote  *net.UDPAddr

	mu        sync.Mutex
	sessionID uint16
	replyID   uint16
	closed    bool
}

func (s *session) Address() string { return s.address }

func asSession(sess device.Session) (*session, error) {
	s, ok := sess.(*session)
	if !ok || s == nil {
		return nil, fmt.Errorf("zkteco: session %T was not opened by this client", sess)
	}
	return s, nil
}

// Connect implements device.Client.
func (c *Client) Connect(ctx context.Context, address string, port int) (device.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	remote, err := net.ResolveUDPAddr("udp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", device.ErrDeviceUnreachable, address, err)
	}

	conn, err := c.bind(ctx)
	if err != nil {
		return nil, err
	}

	s := &session{address: address, conn: conn, remote: remote}
	reply, err := s.exchange(ctx, cmdConnect, nil)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	switch reply.Command {
	case cmdAckOK:
	case cmdAckUnauth:
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s requires a comm key", device.ErrDeviceProtocol, address)
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s refused the session (reply %d)", device.ErrDeviceProtocol, address, reply.Command)
	}

	s.sessionID = reply.SessionID
	return s, nil
}

// Info implements device.Client.
func (c *Client) Info(ctx context.Context, sess device.Session) (device.Info, error) {
	s, err := asSession(sess)
	if err != nil {
		return device.Info{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.InfoTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	var info device.Info

	reply, err := s.command(ctx, cmdGetTime, nil)
	if err != nil {
		return device.Info{}, err
	}
	if len(reply.Payload) < 4 {
		return device.Info{}, fmt.Errorf("%w: %s: short clock reply", device.ErrDeviceProtocol, s.address)
	}
	info.DeviceTime = decodeTime(binary.LittleEndian.Uint32(reply.Payload), c.opts.Location)

	if reply, err = s.command(ctx, cmdOptionsRRQ, []byte("~SerialNumber\x00")); err != nil {
		return device.Info{}, err
	}
	info.SerialNumber = optionValue(reply.Payload)

	if reply, err = s.command(ctx, cmdGetVersion, nil); err != nil {
		return device.Info{}, err
	}
	info.FirmwareVersion = cString(reply.Payload)

	if reply, err = s.command(ctx, cmdFreeSizes, nil); err != nil {
		return device.Info{}, err
	}
	if off := freeSizesRecords * 4; len(reply.Payload) >= off+4 {
		info.RecordCount = int(int32(binary.LittleEndian.Uint32(reply.Payload[off:])))
	}

	return info, nil
}

// FetchPunches implements device.Client. The terminal cannot filter its log,
// so since and until are applied after download.
func (c *Client) FetchPunches(ctx context.Context, sess device.Session, since, until *time.Time) ([]device.RawPunch, error) {
	s, err := asSession(sess)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readBuffer(ctx, cmdAttLogRRQ)
	if err != nil {
		return nil, err
	}

	punches, err := decodeAttendance(data, c.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.address, err)
	}

	if since == nil && until == nil {
		return punches, nil
	}
	filtered := punches[:0]
	for _, p := range punches {
		if since != nil && p.RecordTime.Before(*since) {
			continue
		}
		if until != nil && p.RecordTime.After(*until) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered, nil
}

// Disconnect implements device.Client. The socket is released even when the
// terminal does not acknowledge the exit.
func (c *Client) Disconnect(ctx context.Context, sess device.Session) error {
	s, err := asSession(sess)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.InfoTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_, exitErr := s.command(ctx, cmdExit, nil)
	if err := s.conn.Close(); err != nil && exitErr == nil {
		exitErr = err
	}
	return exitErr
}

// readBuffer runs a bulk read command. Small answers arrive inline as one
// data packet; large ones are announced with their size and streamed.
func (s *session) readBuffer(ctx context.Context, command uint16) ([]byte, error) {
	reply, err := s.exchange(ctx, command, nil)
	if err != nil {
		return nil, err
	}

	switch reply.Command {
	case cmdData:
		return reply.Payload, nil
	case cmdAckOK:
		return nil, nil
	case cmdPrepareData:
	default:
		return nil, fmt.Errorf("%w: %s: unexpected reply %d to command %d", device.ErrDeviceProtocol, s.address, reply.Command, command)
	}

	if len(reply.Payload) < 4 {
		return nil, fmt.Errorf("%w: %s: short prepare reply", device.ErrDeviceProtocol, s.address)
	}
	size := int(binary.LittleEndian.Uint32(reply.Payload))
	if size > maxLogSize {
		return nil, fmt.Errorf("%w: %s: announced %d bytes", device.ErrDeviceProtocol, s.address, size)
	}

	data := make([]byte, 0, size)
	for len(data) < size {
		chunk, err := s.receive(ctx)
		if err != nil {
			return nil, err
		}
		if chunk.Command != cmdData {
			return nil, fmt.Errorf("%w: %s: expected data, got %d", device.ErrDeviceProtocol, s.address, chunk.Command)
		}
		data = append(data, chunk.Payload...)
	}

	done, err := s.receive(ctx)
	if err != nil {
		return nil, err
	}
	if done.Command != cmdAckOK {
		return nil, fmt.Errorf("%w: %s: transfer not acknowledged (%d)", device.ErrDeviceProtocol, s.address, done.Command)
	}

	if _, err := s.command(ctx, cmdFreeData, nil); err != nil {
		return nil, err
	}
	return data, nil
}

// command sends a request and requires an ACK_OK answer.
func (s *session) command(ctx context.Context, command uint16, payload []byte) (packet, error) {
	reply, err := s.exchange(ctx, command, payload)
	if err != nil {
		return packet{}, err
	}
	switch reply.Command {
	case cmdAckOK:
		return reply, nil
	case cmdAckError:
		return packet{}, fmt.Errorf("%w: %s rejected command %d", device.ErrDeviceProtocol, s.address, command)
	default:
		return packet{}, fmt.Errorf("%w: %s: unexpected reply %d to command %d", device.ErrDeviceProtocol, s.address, reply.Command, command)
	}
}

func (s *session) exchange(ctx context.Context, command uint16, payload []byte) (packet, error) {
	s.replyID++
	req := packet{
		Command:   command,
		SessionID: s.sessionID,
		ReplyID:   s.replyID,
		Payload:   payload,
	}
	if _, err := s.conn.WriteToUDP(req.marshal(), s.remote); err != nil {
		return packet{}, fmt.Errorf("%w: %s: %v", device.ErrDeviceUnreachable, s.address, err)
	}
	return s.receive(ctx)
}

func (s *session) receive(ctx context.Context) (packet, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return packet{}, fmt.Errorf("%w: %s: %v", device.ErrDeviceUnreachable, s.address, err)
		}
	}

	buf := make([]byte, maxPacketSize)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return packet{}, fmt.Errorf("%w: %s: no reply", device.ErrDeviceTimeout, s.address)
			}
			return packet{}, fmt.Errorf("%w: %s: %v", device.ErrDeviceUnreachable, s.address, err)
		}
		// Stray datagrams from other hosts are dropped.
		if !from.IP.Equal(s.remote.IP) || from.Port != s.remote.Port {
			continue
		}
		reply, err := unmarshalPacket(buf[:n])
		if err != nil {
			return packet{}, err
		}
		// So are late or duplicated answers to earlier commands.
		if reply.ReplyID != s.replyID {
			continue
		}
		return reply, nil
	}
}
