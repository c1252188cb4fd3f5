package lsm

import "encoding/binary"

// RecordSize is the fixed on-disk width of one Record: an 8-byte LBA plus
// an 8-byte value (the physical block address, or extent id, the LBA
// currently maps to).
const RecordSize = 16

// Record is one (lba -> value) mapping, the unit BIT leaves and MemTable
// both traffic in.
type Record struct {
	LBA   uint64
	Value uint64
}

func (r Record) encode(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], r.LBA)
	binary.LittleEndian.PutUint64(dst[8:16], r.Value)
}

func decodeRecord(src []byte) Record {
	return Record{
		LBA:   binary.LittleEndian.Uint64(src[0:8]),
		Value: binary.LittleEndian.Uint64(src[8:16]),
	}
}

// encodeRecords serializes a records slice as a 4-byte count prefix
// followed by RecordSize bytes per record.
func encodeRecords(records []Record) []byte {
	buf := make([]byte, 4+len(records)*RecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(records)))
	for i, r := range records {
		r.encode(buf[4+i*RecordSize : 4+(i+1)*RecordSize])
	}
	return buf
}

func decodeRecords(buf []byte) []Record {
	n := binary.LittleEndian.Uint32(buf[0:4])
	out := make([]Record, n)
	for i := range out {
		start := 4 + i*RecordSize
		out[i] = decodeRecord(buf[start : start+RecordSize])
	}
	return out
}

// HBA is a host block address, the pagecache.Key this package caches
// decoded BIT nodes under.
type HBA uint64

func (h HBA) Uint64() uint64 { return uint64(h) }
