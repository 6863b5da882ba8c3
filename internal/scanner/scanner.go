// Package scanner filters barcode reads down to book ISBNs.
//
// Decoding happens elsewhere: in the browser (camera) or in a USB/HID
// scanner that types the digits followed by Enter. This package only decides
// which decoded codes count and stops after the first one that does.
package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrNoCode is returned by Scan when the source ends before an accepted code.
var ErrNoCode = errors.New("no ISBN barcode scanned")

// Accept reports whether code is an ISBN-13 barcode: exactly 13 characters
// starting with the Bookland prefix 978 or 979. The check digit is not verified.
func Accept(code string) bool {
	return len(code) == 13 && (strings.HasPrefix(code, "978") || strings.HasPrefix(code, "979"))
}

// Session is one activation of the scanner. It ignores rejected codes and
// stops at the first accepted one; later feeds are ignored.
type Session struct {
	mu     sync.Mutex
	active bool
	code   string
}

// NewSession returns an active session.
func NewSession() *Session {
	return &Session{active: true}
}

// Feed offers one decoded code. It returns the code and true only for the
// read that ends the session.
func (s *Session) Feed(code string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || !Accept(code) {
		return "", false
	}
	s.active = false
	s.code = code
	return code, true
}

// Stop ends the session without a result.
func (s *Session) Stop() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// Active reports whether the session still waits for a code.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Code returns the accepted code, or "" if none was accepted.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Source yields decoded codes one at a time. Next returns io.EOF when
// there are no more.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// LineSource reads one code per line, the way keyboard-emulating scanners
// deliver them.
// Close it when done; Scan does so itself.
type LineSource struct {
	scanner *bufio.Scanner
	lines   chan lineResult
	once    sync.Once

	done      chan struct{}
	closeOnce sync.Once
	exited    chan struct{}
}

type lineResult struct {
	line string
	err  error
}

func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{
		scanner: bufio.NewScanner(r),
		lines:   make(chan lineResult),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

func (l *LineSource) start() {
	go func() {
		defer close(l.exited)
		defer close(l.lines)
		for l.scanner.Scan() {
			if !l.send(lineResult{line: strings.TrimSpace(l.scanner.Text())}) {
				return
			}
		}
		if err := l.scanner.Err(); err != nil {
			l.send(lineResult{err: err})
		}
	}()
}

func (l *LineSource) send(res lineResult) bool {
	select {
	case l.lines <- res:
		return true
	case <-l.done:
		return false
	}
}

// Close stops the reader goroutine. A read already blocked in the
// underlying reader returns first; its line is discarded.
func (l *LineSource) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

// Next blocks for the next line or until ctx is done.
func (l *LineSource) Next(ctx context.Context) (string, error) {
	select {
	case <-l.done:
		return "", io.EOF
	default:
	}
	l.once.Do(l.start)

	select {
	case <-l.done:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}

// Scan runs a session over src and returns the first accepted code. A src
// that is an io.Closer is closed on return.
func Scan(ctx context.Context, src Source) (string, error) {
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}
	session := NewSession()
	for {
		code, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return "", ErrNoCode
		}
		if err != nil {
			return "", err
		}
		if accepted, ok := session.Feed(code); ok {
			return accepted, nil
		}
	}
}
