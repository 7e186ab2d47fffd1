// Package protocol implements the station-action wire messages and their
// length-prefixed binary framing over a raw TCP connection.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Message type codes, matching the original MES wire protocol.
const (
	TypeActionQuery     uint16 = 0x1046
	TypeActionDoneQuery uint16 = 0x1047
	TypeActionRsp       uint16 = 0x1048
)

// NoID is the sentinel for "no order" / "no next station" on the wire.
const NoID uint32 = 0xFFFFFFFF

// ActionType is the decision a response carries.
type ActionType uint32

const (
	Release ActionType = 0
	Execute ActionType = 1
)

// ActionQuery is the payload shared by ACTION_QUERY and ACTION_DONE_QUERY:
// a tray announcing its presence at a workstation.
type ActionQuery struct {
	WorkstationID uint32
	TrayID        uint32
}

// ActionRsp is the dispatch decision returned for a query.
type ActionRsp struct {
	Query         ActionQuery
	OrderID       uint32
	Action        ActionType
	NextStationID uint32
}

// Frame is a typed, length-prefixed message as it travels over the wire:
// a 2-byte type code, a 4-byte big-endian payload length, and the payload.
type Frame struct {
	Type    uint16
	Payload []byte
}

// WriteFrame writes a single length-prefixed frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	header := make([]byte, 6)
	binary.BigEndian.PutUint16(header[0:2], f.Type)
	binary.BigEndian.PutUint32(header[2:6], uint32(len(f.Payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(f.Payload) == 0 {
		return nil
	}
	_, err := w.Write(f.Payload)
	return err
}

// ReadFrame reads a single length-prefixed frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, err
	}
	typ := binary.BigEndian.Uint16(header[0:2])
	length := binary.BigEndian.Uint32(header[2:6])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: typ, Payload: payload}, nil
}

// EncodeActionQuery serialises an ActionQuery payload.
func EncodeActionQuery(q ActionQuery) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], q.WorkstationID)
	binary.BigEndian.PutUint32(buf[4:8], q.TrayID)
	return buf
}

// DecodeActionQuery parses an ActionQuery payload.
func DecodeActionQuery(payload []byte) (ActionQuery, error) {
	if len(payload) < 8 {
		return ActionQuery{}, fmt.Errorf("protocol: action query payload too short: %d bytes", len(payload))
	}
	return ActionQuery{
		WorkstationID: binary.BigEndian.Uint32(payload[0:4]),
		TrayID:        binary.BigEndian.Uint32(payload[4:8]),
	}, nil
}

// EncodeActionRsp serialises an ActionRsp payload.
func EncodeActionRsp(rsp ActionRsp) []byte {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint32(buf[0:4], rsp.Query.WorkstationID)
	binary.BigEndian.PutUint32(buf[4:8], rsp.Query.TrayID)
	binary.BigEndian.PutUint32(buf[8:12], rsp.OrderID)
	binary.BigEndian.PutUint32(buf[12:16], uint32(rsp.Action))
	binary.BigEndian.PutUint32(buf[16:20], rsp.NextStationID)
	return buf
}

// DecodeActionRsp parses an ActionRsp payload.
func DecodeActionRsp(payload []byte) (ActionRsp, error) {
	if len(payload) < 20 {
		return ActionRsp{}, fmt.Errorf("protocol: action rsp payload too short: %d bytes", len(payload))
	}
	return ActionRsp{
		Query: ActionQuery{
			WorkstationID: binary.BigEndian.Uint32(payload[0:4]),
			TrayID:        binary.BigEndian.Uint32(payload[4:8]),
		},
		OrderID:       binary.BigEndian.Uint32(payload[8:12]),
		Action:        ActionType(binary.BigEndian.Uint32(payload[12:16])),
		NextStationID: binary.BigEndian.Uint32(payload[16:20]),
	}, nil
}
