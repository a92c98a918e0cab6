// Package plc implements the concurrent PLC polling layer. Tags are read
// over EtherNet/IP from MicroLogix/ControlLogix controllers; each tag is
// an 8-bit unsigned value where 0 means inactive and 1 means active. The
// wire encoding is a minimal, self-contained implementation over net.Conn:
// only session registration and single-tag reads are needed.
package plc

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// encapsulationHeader is the fixed 24-byte ENIP encapsulation header that
// precedes every CIP request/response.
type encapsulationHeader struct {
	Command       uint16
	Length        uint16
	SessionHandle uint32
	Status        uint32
	SenderContext [8]byte
	Options       uint32
}

const (
	cmdRegisterSession uint16 = 0x0065
	cmdSendRRData      uint16 = 0x006F
	cipServiceGetAttr  byte   = 0x0E
)

// enipPort is the standard EtherNet/IP TCP port; a variable so tests can
// point the dialer at a local listener.
var enipPort = "44818"

// TagReader reads a single bit-tag value from a controller over the wire.
type TagReader interface {
	ReadTag(ctx context.Context, ip, tag string) (int, error)
	Close() error
}

// enipConn is a single TCP session to one controller IP, registered once
// and reused for every tag read against that IP.
type enipConn struct {
	conn          net.Conn
	sessionHandle uint32
}

// dialENIP opens a TCP connection and performs the ENIP RegisterSession
// handshake, bounded by the supplied deadline.
func dialENIP(ctx context.Context, ip string, timeout time.Duration) (*enipConn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, enipPort))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ip, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	req := encapsulationHeader{Command: cmdRegisterSession, Length: 4}
	if err := writeHeader(conn, req, []byte{0x01, 0x00, 0x00, 0x00}); err != nil {
		conn.Close()
		return nil, err
	}

	hdr, _, err := readHeader(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &enipConn{conn: conn, sessionHandle: hdr.SessionHandle}, nil
}

func writeHeader(conn net.Conn, hdr encapsulationHeader, payload []byte) error {
	buf := make([]byte, 24+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], hdr.Command)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(payload)))
	binary.LittleEndian.PutUint32(buf[4:8], hdr.SessionHandle)
	binary.LittleEndian.PutUint32(buf[8:12], hdr.Status)
	copy(buf[24:], payload)
	_, err := conn.Write(buf)
	return err
}

func readHeader(conn net.Conn) (encapsulationHeader, []byte, error) {
	buf := make([]byte, 24)
	if _, err := readFull(conn, buf); err != nil {
		return encapsulationHeader{}, nil, err
	}
	hdr := encapsulationHeader{
		Command:       binary.LittleEndian.Uint16(buf[0:2]),
		Length:        binary.LittleEndian.Uint16(buf[2:4]),
		SessionHandle: binary.LittleEndian.Uint32(buf[4:8]),
		Status:        binary.LittleEndian.Uint32(buf[8:12]),
	}
	payload := make([]byte, hdr.Length)
	if hdr.Length > 0 {
		if _, err := readFull(conn, payload); err != nil {
			return hdr, nil, err
		}
	}
	return hdr, payload, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ReadTag issues a CIP Get_Attribute_Single request for the named tag and
// interprets the single-byte response as 0 or 1.
func (c *enipConn) ReadTag(ctx context.Context, ip, tag string) (int, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	}

	payload := buildCIPRequest(tag)
	hdr := encapsulationHeader{Command: cmdSendRRData, SessionHandle: c.sessionHandle}
	if err := writeHeader(c.conn, hdr, payload); err != nil {
		return 0, fmt.Errorf("write tag request %s: %w", tag, err)
	}

	_, resp, err := readHeader(c.conn)
	if err != nil {
		return 0, fmt.Errorf("read tag response %s: %w", tag, err)
	}
	if len(resp) == 0 {
		return 0, fmt.Errorf("empty response for tag %s", tag)
	}

	value := resp[len(resp)-1]
	if value == 0 {
		return 0, nil
	}
	return 1, nil
}

func buildCIPRequest(tag string) []byte {
	b := make([]byte, 0, len(tag)+4)
	b = append(b, cipServiceGetAttr, byte(len(tag)))
	b = append(b, []byte(tag)...)
	return b
}

func (c *enipConn) Close() error {
	return c.conn.Close()
}
