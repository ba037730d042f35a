// internal/realtime/frame.go
// STOMP 1.2 frame codec. Each websocket text message carries exactly one
// frame: command line, header lines, blank line, body, NUL terminator. A
// bare newline is a heart-beat.

package realtime

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Frame commands used by this client.
const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdSend        = "SEND"
	CmdMessage     = "MESSAGE"
	CmdError       = "ERROR"
)

// Well-known header names.
const (
	HdrAcceptVersion = "accept-version"
	HdrVersion       = "version"
	HdrHost          = "host"
	HdrHeartBeat     = "heart-beat"
	HdrDestination   = "destination"
	HdrID            = "id"
	HdrSubscription  = "subscription"
	HdrContentLength = "content-length"
	HdrContentType   = "content-type"
	HdrMessage       = "message"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrHeartBeat marks an EOL-only frame; callers skip it.
	ErrHeartBeat = errors.New("heart-beat")
)

// Frame is one STOMP frame. Headers keep insertion order; on read,
// duplicated header names follow first-wins per the protocol.
type Frame struct {
	Command string
	headers []string // flat name/value pairs
	Body    []byte
}

// NewFrame builds a frame from alternating header name/value strings.
func NewFrame(command string, body []byte, headers ...string) *Frame {
	if len(headers)%2 != 0 {
		panic("realtime: odd header count")
	}
	return &Frame{Command: command, headers: headers, Body: body}
}

// Header returns the first value for name, "" when absent.
func (f *Frame) Header(name string) string {
	for i := 0; i+1 < len(f.headers); i += 2 {
		if f.headers[i] == name {
			return f.headers[i+1]
		}
	}
	return ""
}

// SetHeader appends or replaces the first occurrence of name.
func (f *Frame) SetHeader(name, value string) {
	for i := 0; i+1 < len(f.headers); i += 2 {
		if f.headers[i] == name {
			f.headers[i+1] = value
			return
		}
	}
	f.headers = append(f.headers, name, value)
}

// Marshal renders the frame to the wire format. A content-length header is
// added for any non-empty body so NUL bytes inside JSON strings survive.
func (f *Frame) Marshal() []byte {
	var b bytes.Buffer
	b.WriteString(f.Command)
	b.WriteByte('\n')

	escape := f.Command != CmdConnect && f.Command != CmdConnected
	for i := 0; i+1 < len(f.headers); i += 2 {
		writeHeaderToken(&b, f.headers[i], escape)
		b.WriteByte(':')
		writeHeaderToken(&b, f.headers[i+1], escape)
		b.WriteByte('\n')
	}
	if len(f.Body) > 0 && f.Header(HdrContentLength) == "" {
		fmt.Fprintf(&b, "%s:%d\n", HdrContentLength, len(f.Body))
	}
	b.WriteByte('\n')
	b.Write(f.Body)
	b.WriteByte(0)
	return b.Bytes()
}

func writeHeaderToken(b *bytes.Buffer, s string, escape bool) {
	if !escape {
		b.WriteString(s)
		return
	}
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		case ':':
			b.WriteString(`\c`)
		default:
			b.WriteRune(r)
		}
	}
}

func unescapeHeaderToken(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("%w: dangling escape", ErrMalformedFrame)
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		default:
			return "", fmt.Errorf("%w: unknown escape \\%c", ErrMalformedFrame, s[i])
		}
	}
	return b.String(), nil
}

// ParseFrame decodes one frame from raw. It returns ErrHeartBeat for
// EOL-only input.
func ParseFrame(raw []byte) (*Frame, error) {
	if len(bytes.Trim(raw, "\x00\r\n")) == 0 {
		return nil, ErrHeartBeat
	}

	head, body, found := bytes.Cut(raw, []byte("\n\n"))
	if !found {
		// Headers only: the body is empty and head still ends with the
		// terminator trimmed below.
		head = bytes.TrimRight(raw, "\x00\r\n")
		body = nil
	}

	lines := strings.Split(string(head), "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	if lines[0] == "" {
		return nil, fmt.Errorf("%w: empty command", ErrMalformedFrame)
	}

	f := &Frame{Command: lines[0]}
	escape := f.Command != CmdConnect && f.Command != CmdConnected
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header %q", ErrMalformedFrame, line)
		}
		if escape {
			var err error
			if name, err = unescapeHeaderToken(name); err != nil {
				return nil, err
			}
			if value, err = unescapeHeaderToken(value); err != nil {
				return nil, err
			}
		}
		// First occurrence wins on read.
		if f.Header(name) == "" {
			f.headers = append(f.headers, name, value)
		}
	}

	if cl := f.Header(HdrContentLength); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(body) {
			return nil, fmt.Errorf("%w: content-length %q", ErrMalformedFrame, cl)
		}
		body = body[:n]
	} else if i := bytes.IndexByte(body, 0); i >= 0 {
		body = body[:i]
	}
	if len(body) > 0 {
		f.Body = append([]byte(nil), body...)
	}
	return f, nil
}
