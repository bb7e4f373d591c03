package kv

import (
	"github.com/DataDog/zstd"
	"github.com/kelindar/binary"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
)

func encodeRoute(r datastructure.RouteRecord) ([]byte, error) {
	bb, err := binary.Marshal(r)
	if err != nil {
		return nil, err
	}
	return compress(bb)
}

func decodeRoute(bbCompressed []byte) (datastructure.RouteRecord, error) {
	var r datastructure.RouteRecord
	bb, err := decompress(bbCompressed)
	if err != nil {
		return r, err
	}
	err = binary.Unmarshal(bb, &r)
	return r, err
}

func compress(bb []byte) ([]byte, error) {
	var bbCompressed []byte
	bbCompressed, err := zstd.Compress(bbCompressed, bb)
	if err != nil {
		return []byte{}, err
	}
	return bbCompressed, nil
}

func decompress(bbCompressed []byte) ([]byte, error) {
	var bb []byte
	bb, err := zstd.Decompress(bb, bbCompressed)
	if err != nil {
		return []byte{}, err
	}
	return bb, nil
}
