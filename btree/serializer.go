package btree

import (
	"encoding/binary"
	"fmt"

	"ridgedb/common"
	"ridgedb/disk/pages"
)

// KeySerializer converts between a common.Key and its on-page byte representation.
// Node implementations are key-type agnostic; they only know how to ask a
// KeySerializer to round-trip whatever concrete key type the tree was built with.
type KeySerializer interface {
	Serialize(key common.Key) ([]byte, error)
	Deserialize(data []byte) (common.Key, error)
}

// ValueSerializer is KeySerializer's counterpart for leaf values.
type ValueSerializer interface {
	Serialize(val interface{}) ([]byte, error)
	Deserialize(data []byte) (interface{}, error)
}

var _ KeySerializer = Int64KeySerializer{}

// Int64KeySerializer serializes common.Int64Key, the engine's clustered-index key
// type, as a fixed 8-byte big-endian integer.
type Int64KeySerializer struct{}

func (Int64KeySerializer) Serialize(key common.Key) ([]byte, error) {
	k, ok := key.(common.Int64Key)
	if !ok {
		return nil, fmt.Errorf("btree: Int64KeySerializer cannot serialize key of type %T", key)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(k))
	return buf, nil
}

func (Int64KeySerializer) Deserialize(data []byte) (common.Key, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("btree: Int64KeySerializer needs 8 bytes, got %d", len(data))
	}
	return common.Int64Key(binary.BigEndian.Uint64(data)), nil
}

var _ ValueSerializer = RIDValueSerializer{}

// RIDValueSerializer serializes pages.RID, the value type a table's clustered index
// stores: for every key, a pointer to the heap tuple holding the row.
type RIDValueSerializer struct{}

func (RIDValueSerializer) Serialize(val interface{}) ([]byte, error) {
	rid, ok := val.(pages.RID)
	if !ok {
		return nil, fmt.Errorf("btree: RIDValueSerializer cannot serialize value of type %T", val)
	}
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf, uint64(rid.PageID))
	binary.BigEndian.PutUint32(buf[8:], rid.SlotNum)
	return buf, nil
}

func (RIDValueSerializer) Deserialize(data []byte) (interface{}, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("btree: RIDValueSerializer needs 12 bytes, got %d", len(data))
	}
	return pages.RID{
		PageID:  pages.PageID(binary.BigEndian.Uint64(data)),
		SlotNum: binary.BigEndian.Uint32(data[8:]),
	}, nil
}

var _ KeySerializer = StringKeySerializer{}

// StringKeySerializer serializes common.StringKey as-is: the slotted page
// already tracks each slot's byte length, so no length prefix or padding is
// needed here.
type StringKeySerializer struct{}

func (StringKeySerializer) Serialize(key common.Key) ([]byte, error) {
	k, ok := key.(common.StringKey)
	if !ok {
		return nil, fmt.Errorf("btree: StringKeySerializer cannot serialize key of type %T", key)
	}
	return []byte(k), nil
}

func (StringKeySerializer) Deserialize(data []byte) (common.Key, error) {
	return common.StringKey(data), nil
}

var _ ValueSerializer = StringValueSerializer{}

// StringValueSerializer serializes a plain Go string leaf value, e.g. a
// secondary index's stored column or a demo value.
type StringValueSerializer struct{}

func (StringValueSerializer) Serialize(val interface{}) ([]byte, error) {
	s, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("btree: StringValueSerializer cannot serialize value of type %T", val)
	}
	return []byte(s), nil
}

func (StringValueSerializer) Deserialize(data []byte) (interface{}, error) {
	return string(data), nil
}
