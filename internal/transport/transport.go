package transport

import "context"

// Dialer opens line-oriented connections to an upstream server.
type Dialer interface {
	Name() string
	Target() string
	Dial(ctx context.Context) (LineConn, error)
}

// LineConn is a single live CRLF-delimited text connection.
// ReadLine must only be called from one goroutine at a time.
type LineConn interface {
	ReadLine(ctx context.Context) (string, error)
	WriteLine(ctx context.Context, line string) error
	Close() error
	RemoteAddr() string
}
