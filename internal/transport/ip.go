package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	defaultIPPort      = 14580
	defaultDialTimeout = 6 * time.Second
)

// IPTransport dials CRLF line connections over TCP.
type IPTransport struct {
	host        string
	port        int
	dialTimeout time.Duration
	logger      *slog.Logger
}

func NewIPTransport(host string, port int) *IPTransport {
	if port == 0 {
		port = defaultIPPort
	}

	t := &IPTransport{host: host, port: port, dialTimeout: defaultDialTimeout}
	t.logger = slog.With("component", "transport", "transport", t.Name(), "target", t.Target())

	return t
}

func (t *IPTransport) Name() string {
	return "ip"
}

func (t *IPTransport) Target() string {
	if t.host == "" {
		return ""
	}

	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

func (t *IPTransport) Dial(ctx context.Context) (LineConn, error) {
	if t.host == "" {
		t.logger.Warn("connect failed: host is empty")

		return nil, errors.New("ip host is empty")
	}

	dialer := net.Dialer{Timeout: t.dialTimeout}
	t.logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "tcp", t.Target())
	if err != nil {
		t.logger.Warn("connect failed", "error", err)

		return nil, fmt.Errorf("dial tcp: %w", err)
	}
	t.logger.Info("connected", "remote", conn.RemoteAddr().String())

	return newIPConn(conn, t.logger), nil
}

type ipConn struct {
	conn   net.Conn
	reader *bufio.Reader
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newIPConn(conn net.Conn, logger *slog.Logger) *ipConn {
	return &ipConn{
		conn:   conn,
		reader: newLineReader(conn),
		logger: logger,
	}
}

func (c *ipConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *ipConn) ReadLine(ctx context.Context) (string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}

	line, err := readLine(c.reader)
	if err != nil {
		c.logger.Debug("read line failed", "error", err)

		return "", err
	}
	c.logger.Debug("read line", "len", len(line))

	return line, nil
}

func (c *ipConn) WriteLine(ctx context.Context, line string) error {
	payload, err := encodeLine(line)
	if err != nil {
		c.logger.Warn("encode line failed", "len", len(line), "error", err)

		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := c.conn.Write(payload); err != nil {
		c.logger.Warn("write line failed", "len", len(payload), "error", err)

		return fmt.Errorf("write line: %w", err)
	}
	c.logger.Debug("write line", "len", len(payload))

	return nil
}

func (c *ipConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		if c.closeErr != nil {
			c.logger.Warn("close failed", "error", c.closeErr)

			return
		}
		c.logger.Info("closed")
	})

	return c.closeErr
}
