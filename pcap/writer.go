package pcap

import (
	"encoding/binary"
	"io"
	"sync"
)

// Writer serializes Packets to an io.Writer. Put may be called from
// several goroutines. A non-zero SnapLen caps the bytes stored per
// packet; the original length is still recorded.
type Writer struct {
	Writer    io.Writer
	LinkType  LinkType
	SnapLen   uint32
	ByteOrder binary.ByteOrder // defaults to binary.LittleEndian

	mu            sync.Mutex
	headerWritten bool
}

func (w *Writer) order() binary.ByteOrder {
	if w.ByteOrder != nil {
		return w.ByteOrder
	}
	return binary.LittleEndian
}

func (w *Writer) header() error {
	hdr := struct {
		Magic   uint32
		Major   uint16
		Minor   uint16
		Ignored uint64
		Snaplen uint32
		Type    uint32
	}{
		Magic:   0xa1b23c4d,
		Major:   2,
		Minor:   4,
		Snaplen: w.SnapLen,
		Type:    uint32(w.LinkType),
	}

	if err := binary.Write(w.Writer, w.order(), hdr); err != nil {
		return err
	}
	w.headerWritten = true
	return nil
}

// Put serializes pkt to w.Writer.
func (w *Writer) Put(pkt *Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.headerWritten {
		if err := w.header(); err != nil {
			return err
		}
	}
	data := pkt.Bytes
	if w.SnapLen > 0 && uint32(len(data)) > w.SnapLen {
		data = data[:w.SnapLen]
	}
	hdr := struct {
		Sec     uint32
		NSec    uint32
		Len     uint32
		OrigLen uint32
	}{
		Sec:     uint32(pkt.Timestamp.Unix()),
		NSec:    uint32(pkt.Timestamp.Nanosecond()),
		Len:     uint32(len(data)),
		OrigLen: uint32(pkt.Length),
	}

	if err := binary.Write(w.Writer, w.order(), hdr); err != nil {
		return err
	}
	if _, err := w.Writer.Write(data); err != nil {
		return err
	}
	return nil
}
