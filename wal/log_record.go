package wal

import (
	"encoding/binary"
	"fmt"

	"ridgedb/disk/pages"
)

// LogRecordType tags the payload that follows the common header. Names mirror the
// on-disk record kinds a transaction's write set and recovery both reason about.
type LogRecordType int32

const (
	TypeInvalid LogRecordType = iota
	TypeBegin
	TypeCommit
	TypeAbort
	TypeInsert
	TypeMarkDelete
	TypeRollbackDelete
	TypeApplyDelete
	TypeUpdate
	TypeNewPage
	TypeHeapNewPage
)

func (t LogRecordType) String() string {
	switch t {
	case TypeBegin:
		return "BEGIN"
	case TypeCommit:
		return "COMMIT"
	case TypeAbort:
		return "ABORT"
	case TypeInsert:
		return "INSERT"
	case TypeMarkDelete:
		return "MARKDELETE"
	case TypeRollbackDelete:
		return "ROLLBACKDELETE"
	case TypeApplyDelete:
		return "APPLYDELETE"
	case TypeUpdate:
		return "UPDATE"
	case TypeNewPage:
		return "NEWPAGE"
	case TypeHeapNewPage:
		return "HEAPNEWPAGE"
	default:
		return "INVALID"
	}
}

// HeaderSize is the size of the common header: size(4) + lsn(4) + txn_id(4) +
// prev_lsn(4) + type(4). LSN here is carried as a 32-bit quantity on the wire,
// matching the original engine's lsn_t; in memory it is widened to pages.LSN.
const HeaderSize = 20

// InvalidLSN marks the end of a previous-LSN chain, i.e. a transaction's first record.
const InvalidLSN pages.LSN = 0

// ridSize is the wire size of a RID: a 4-byte page id plus a 4-byte slot number.
const ridSize = 8

// LogRecord is one physical entry in the write-ahead log. Only the fields relevant
// to Type are populated; the rest are zero.
type LogRecord struct {
	Size    uint32
	Lsn     pages.LSN
	TxnID   int32
	PrevLsn pages.LSN
	Type    LogRecordType

	RID        pages.RID
	Tuple      []byte
	OldTuple   []byte
	NewTuple   []byte
	PageID     pages.PageID
	PrevPageID pages.PageID
}

func NewBeginRecord(txnID int32, prevLsn pages.LSN) *LogRecord {
	return &LogRecord{TxnID: txnID, PrevLsn: prevLsn, Type: TypeBegin}
}

func NewCommitRecord(txnID int32, prevLsn pages.LSN) *LogRecord {
	return &LogRecord{TxnID: txnID, PrevLsn: prevLsn, Type: TypeCommit}
}

func NewAbortRecord(txnID int32, prevLsn pages.LSN) *LogRecord {
	return &LogRecord{TxnID: txnID, PrevLsn: prevLsn, Type: TypeAbort}
}

func NewInsertRecord(txnID int32, prevLsn pages.LSN, rid pages.RID, tuple []byte) *LogRecord {
	return &LogRecord{TxnID: txnID, PrevLsn: prevLsn, Type: TypeInsert, RID: rid, Tuple: tuple}
}

func NewApplyDeleteRecord(txnID int32, prevLsn pages.LSN, rid pages.RID, tuple []byte) *LogRecord {
	return &LogRecord{TxnID: txnID, PrevLsn: prevLsn, Type: TypeApplyDelete, RID: rid, Tuple: tuple}
}

func NewMarkDeleteRecord(txnID int32, prevLsn pages.LSN, rid pages.RID) *LogRecord {
	return &LogRecord{TxnID: txnID, PrevLsn: prevLsn, Type: TypeMarkDelete, RID: rid}
}

func NewRollbackDeleteRecord(txnID int32, prevLsn pages.LSN, rid pages.RID) *LogRecord {
	return &LogRecord{TxnID: txnID, PrevLsn: prevLsn, Type: TypeRollbackDelete, RID: rid}
}

func NewUpdateRecord(txnID int32, prevLsn pages.LSN, rid pages.RID, old, new_ []byte) *LogRecord {
	return &LogRecord{TxnID: txnID, PrevLsn: prevLsn, Type: TypeUpdate, RID: rid, OldTuple: old, NewTuple: new_}
}

// NewNewPageRecord marks that a page was allocated, for active_txn/lsn_mapping
// bookkeeping only: the buffer pool allocates pages for every node type (heap
// pages, B+ tree pages) and has no domain-specific content to redo here.
func NewNewPageRecord(txnID int32, prevLsn pages.LSN) *LogRecord {
	return &LogRecord{TxnID: txnID, PrevLsn: prevLsn, Type: TypeNewPage}
}

// NewHeapNewPageRecord logs a heap table linking a freshly allocated page
// (pageID) onto the tail previously at prevPageID. Unlike NewNewPageRecord
// this is heap-specific and redoable: the record carries enough to
// reinitialize pageID as an empty heap page and restore prevPageID's
// next-page link.
func NewHeapNewPageRecord(txnID int32, prevLsn pages.LSN, pageID, prevPageID pages.PageID) *LogRecord {
	return &LogRecord{TxnID: txnID, PrevLsn: prevLsn, Type: TypeHeapNewPage, PageID: pageID, PrevPageID: prevPageID}
}

// Encode serializes the record header-first, stamping Size with the total length
// written. lr.Lsn must already be set by the caller (the log manager assigns it).
func (lr *LogRecord) Encode() []byte {
	payload := lr.encodePayload()
	total := HeaderSize + len(payload)
	lr.Size = uint32(total)

	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:], lr.Size)
	binary.BigEndian.PutUint32(buf[4:], uint32(lr.Lsn))
	binary.BigEndian.PutUint32(buf[8:], uint32(lr.TxnID))
	binary.BigEndian.PutUint32(buf[12:], uint32(lr.PrevLsn))
	binary.BigEndian.PutUint32(buf[16:], uint32(lr.Type))
	copy(buf[HeaderSize:], payload)
	return buf
}

func (lr *LogRecord) encodePayload() []byte {
	switch lr.Type {
	case TypeBegin, TypeCommit, TypeAbort, TypeNewPage:
		return nil
	case TypeInsert, TypeApplyDelete:
		return encodeRID(lr.RID, encodeLengthPrefixed(lr.Tuple))
	case TypeMarkDelete, TypeRollbackDelete:
		return encodeRID(lr.RID, nil)
	case TypeUpdate:
		buf := encodeRID(lr.RID, nil)
		buf = append(buf, encodeLengthPrefixed(lr.OldTuple)...)
		buf = append(buf, encodeLengthPrefixed(lr.NewTuple)...)
		return buf
	case TypeHeapNewPage:
		b := make([]byte, 8)
		binary.BigEndian.PutUint32(b, uint32(lr.PageID))
		binary.BigEndian.PutUint32(b[4:], uint32(lr.PrevPageID))
		return b
	default:
		panic(fmt.Sprintf("wal: cannot encode record of type %v", lr.Type))
	}
}

func encodeRID(rid pages.RID, tail []byte) []byte {
	buf := make([]byte, ridSize+len(tail))
	binary.BigEndian.PutUint32(buf[0:], uint32(rid.PageID))
	binary.BigEndian.PutUint32(buf[4:], rid.SlotNum)
	copy(buf[ridSize:], tail)
	return buf
}

func encodeLengthPrefixed(data []byte) []byte {
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	return buf
}

// Decode parses one log record from buf, which must hold at least HeaderSize bytes
// plus whatever payload the header's Size field claims. It returns the record and
// the number of bytes consumed. A zero Size or an out-of-range Type is reported as
// io.EOF-equivalent via ok=false: recovery treats it as the end of the log.
func Decode(buf []byte) (lr *LogRecord, consumed int, ok bool) {
	if len(buf) < HeaderSize {
		return nil, 0, false
	}

	size := binary.BigEndian.Uint32(buf[0:])
	if size == 0 || int(size) > len(buf) {
		return nil, 0, false
	}

	typ := LogRecordType(binary.BigEndian.Uint32(buf[16:]))
	if typ <= TypeInvalid || typ > TypeHeapNewPage {
		return nil, 0, false
	}

	lr = &LogRecord{
		Size:    size,
		Lsn:     pages.LSN(binary.BigEndian.Uint32(buf[4:])),
		TxnID:   int32(binary.BigEndian.Uint32(buf[8:])),
		PrevLsn: pages.LSN(binary.BigEndian.Uint32(buf[12:])),
		Type:    typ,
	}

	payload := buf[HeaderSize:size]
	switch typ {
	case TypeBegin, TypeCommit, TypeAbort, TypeNewPage:
	case TypeInsert, TypeApplyDelete:
		rid, rest := decodeRID(payload)
		lr.RID = rid
		lr.Tuple = decodeLengthPrefixed(rest)
	case TypeMarkDelete, TypeRollbackDelete:
		rid, _ := decodeRID(payload)
		lr.RID = rid
	case TypeUpdate:
		rid, rest := decodeRID(payload)
		lr.RID = rid
		old := decodeLengthPrefixed(rest)
		lr.OldTuple = old
		lr.NewTuple = decodeLengthPrefixed(rest[4+len(old):])
	case TypeHeapNewPage:
		lr.PageID = pages.PageID(binary.BigEndian.Uint32(payload))
		lr.PrevPageID = pages.PageID(binary.BigEndian.Uint32(payload[4:]))
	}

	return lr, int(size), true
}

func decodeRID(buf []byte) (pages.RID, []byte) {
	rid := pages.RID{
		PageID:  pages.PageID(binary.BigEndian.Uint32(buf[0:])),
		SlotNum: binary.BigEndian.Uint32(buf[4:]),
	}
	return rid, buf[ridSize:]
}

func decodeLengthPrefixed(buf []byte) []byte {
	n := binary.BigEndian.Uint32(buf)
	out := make([]byte, n)
	copy(out, buf[4:4+n])
	return out
}
