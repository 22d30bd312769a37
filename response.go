package httpdispatch

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"time"
)

// Response is the result of one successful (or cache-synthesized) HTTP
// attempt.
type Response struct {
	Bytes          []byte
	Status         int
	Headers        map[string][]string
	RequestID      uint32
	ResponseTimeMs int64
	CreatedAt      time.Time
	FromCache      bool
}

// responseMeta is the parsed-fields-first portion of a serialized Response;
// Bytes is intentionally excluded here and appended as a raw tail so a
// future reader that only understands an older metadata shape can still
// recover the body.
type responseMeta struct {
	Status         int
	Headers        map[string][]string
	RequestID      uint32
	ResponseTimeMs int64
	CreatedAtUnixN int64
	FromCache      bool
}

// Serialize renders the Response as parsed metadata followed by the raw
// body bytes, satisfying serialize ∘ deserialize = id.
func (r *Response) Serialize() ([]byte, error) {
	meta := responseMeta{
		Status:         r.Status,
		Headers:        r.Headers,
		RequestID:      r.RequestID,
		ResponseTimeMs: r.ResponseTimeMs,
		CreatedAtUnixN: r.CreatedAt.UnixNano(),
		FromCache:      r.FromCache,
	}
	var metaBuf bytes.Buffer
	if err := gob.NewEncoder(&metaBuf).Encode(&meta); err != nil {
		return nil, &ProtocolError{Message: "unserializable response", Cause: err}
	}

	var out bytes.Buffer
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(metaBuf.Len()))
	out.Write(lenPrefix[:])
	out.Write(metaBuf.Bytes())
	out.Write(r.Bytes)
	return out.Bytes(), nil
}

// DeserializeResponse reverses Serialize.
func DeserializeResponse(data []byte) (*Response, error) {
	if len(data) < 4 {
		return nil, &ProtocolError{Message: "truncated response record"}
	}
	metaLen := binary.BigEndian.Uint32(data[:4])
	if uint32(len(data)-4) < metaLen {
		return nil, &ProtocolError{Message: "truncated response metadata"}
	}
	metaBytes := data[4 : 4+metaLen]
	tail := data[4+metaLen:]

	var meta responseMeta
	if err := gob.NewDecoder(bytes.NewReader(metaBytes)).Decode(&meta); err != nil {
		return nil, &ProtocolError{Message: "malformed response metadata", Cause: err}
	}

	return &Response{
		Bytes:          tail,
		Status:         meta.Status,
		Headers:        meta.Headers,
		RequestID:      meta.RequestID,
		ResponseTimeMs: meta.ResponseTimeMs,
		CreatedAt:      time.Unix(0, meta.CreatedAtUnixN),
		FromCache:      meta.FromCache,
	}, nil
}

// HeaderFirst returns the first value of a header, matching the
// single-value accessor semantics used by directive parsing.
func (r *Response) HeaderFirst(name string) string {
	return headerFirst(r.Headers, name)
}

// Successful reports whether the response's status is 200 or 201 — the
// only statuses eligible for cache writeback per the Work Manager's
// shouldCache() evaluation.
func (r *Response) Successful() bool {
	return r.Status == 200 || r.Status == 201
}
