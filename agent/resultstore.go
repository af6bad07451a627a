package agent

import (
	"fmt"

	"github.com/mtraver/base91"
	"github.com/vmihailenco/msgpack/v5"
)

// resultSizeCompressThreshold bounds the memory/disk cost of a pathological
// capture (a large variableTable): payloads above this size are zstd
// compressed before being staged, below it the msgpack bytes are stored raw
// to avoid paying compression overhead on the common small snapshot.
const resultSizeCompressThreshold = 4096

// storedResult is the Result Store's own on-disk encoding of a captured
// Breakpoint, kept separate from the control-plane-facing wire format
// (which stays JSON per spec.md §6).
type storedResult struct {
	ID                   string         `msgpack:"id"`
	StackFrames          []StackFrame   `msgpack:"stackFrames,omitempty"`
	VariableTable        []Variable     `msgpack:"variableTable,omitempty"`
	EvaluatedExpressions []Variable     `msgpack:"evaluatedExpressions,omitempty"`
	RenderedLogMessage   string         `msgpack:"renderedLogMessage,omitempty"`
	Status               *StatusMessage `msgpack:"status,omitempty"`
}

// ResultStore durably stages a captured snapshot keyed by breakpoint id, so
// a result already captured survives an agent restart even if the (out of
// scope) control-plane transport has not yet acknowledged delivery. It
// wraps the generic Storage interface with the Result Store's own
// msgpack + optional zstd encoding.
type ResultStore struct {
	storage Storage
}

// NewResultStore wraps storage (typically a badgerStorage from
// NewBadgerStorage, namespaced with KeyPrefixStorage) as a Result Store.
func NewResultStore(storage Storage) *ResultStore {
	return &ResultStore{storage: storage}
}

// Save encodes bp's output fields and stages them under its id. Breakpoints
// with no output yet (never hit) are not staged.
func (rs *ResultStore) Save(bp *Breakpoint) error {
	if !bp.IsCaptured() {
		return nil
	}
	payload := storedResult{
		ID:                   fmt.Sprintf("%v", bp.ID),
		StackFrames:          bp.StackFrames,
		VariableTable:        bp.VariableTable,
		EvaluatedExpressions: bp.EvaluatedExpressions,
		RenderedLogMessage:   bp.RenderedLogMessage,
		Status:               bp.Status,
	}
	raw, err := msgpack.Marshal(&payload)
	if err != nil {
		return fmt.Errorf("encode result for %v: %w", bp.ID, err)
	}

	blob := raw
	compressed := false
	if len(raw) > resultSizeCompressThreshold {
		blob = ZstdCompress(nil, raw)
		compressed = true
	}
	return rs.storage.SaveState(resultKey(bp.ID, compressed), blob)
}

// Load retrieves and decodes a previously staged result, if present.
func (rs *ResultStore) Load(id any) (*storedResult, bool, error) {
	for _, compressed := range []bool{false, true} {
		blob, ok, err := rs.storage.LoadState(resultKey(id, compressed))
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		raw := blob
		if compressed {
			raw, err = ZstdDecompress(nil, blob)
			if err != nil {
				return nil, false, fmt.Errorf("decompress result for %v: %w", id, err)
			}
		}
		var payload storedResult
		if err := msgpack.Unmarshal(raw, &payload); err != nil {
			return nil, false, fmt.Errorf("decode result for %v: %w", id, err)
		}
		return &payload, true, nil
	}
	return nil, false, nil
}

// Delete removes a staged result once the control plane has acknowledged
// delivery.
func (rs *ResultStore) Delete(id any) error {
	if err := rs.storage.DeleteState(resultKey(id, false)); err != nil {
		return err
	}
	return rs.storage.DeleteState(resultKey(id, true))
}

// Close releases the underlying Storage.
func (rs *ResultStore) Close() {
	rs.storage.Close()
}

func resultKey(id any, compressed bool) string {
	suffix := "raw"
	if compressed {
		suffix = "zstd"
	}
	// base91 keeps the id portion of the key printable/log-safe even when id
	// is an arbitrary scalar rendered through fmt.Sprintf, the same
	// encoding the Source Scanner uses for its content hashes.
	encoded := base91.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%v", id)))
	return encoded + ";" + suffix
}
