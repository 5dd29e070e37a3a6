package hashdag

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sync"
)

// MemoryBackend is a Backend that keeps the applied diff history and the
// latest per-page contents in memory, for tests and short-lived tools.
type MemoryBackend struct {
	mu    sync.Mutex
	pages map[uint32][]uint32
	ops   []PageOp
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{pages: make(map[uint32][]uint32)}
}

// Apply records ops and folds them into the backend's page snapshot.
func (b *MemoryBackend) Apply(ops []PageOp) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, op := range ops {
		if op.Unbind {
			delete(b.pages, op.PageID)
			continue
		}
		page := b.pages[op.PageID]
		end := int(op.Offset) + len(op.Words)
		if end > len(page) {
			grown := make([]uint32, end)
			copy(grown, page)
			page = grown
		}
		copy(page[op.Offset:end], op.Words)
		b.pages[op.PageID] = page
	}
	b.ops = append(b.ops, ops...)
	return nil
}

// Page returns a copy of pageID's current contents, or nil if unbound.
func (b *MemoryBackend) Page(pageID uint32) []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	page, ok := b.pages[pageID]
	if !ok {
		return nil
	}
	return append([]uint32(nil), page...)
}

// Ops returns every PageOp ever applied, in application order, mainly
// for test assertions about what a Flush produced.
func (b *MemoryBackend) Ops() []PageOp {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PageOp(nil), b.ops...)
}

// FileBackend appends each Flush's diff to a log file as a stream of
// length-prefixed deterministic-CBOR records, for tools that need a
// durable, replayable trace of every PagedStore mutation.
type FileBackend struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// OpenFileBackend opens (creating if needed) path for append.
func OpenFileBackend(path string) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, wrapExternalError(err)
	}
	return &FileBackend{f: f, w: bufio.NewWriter(f)}, nil
}

// Apply encodes ops as one length-prefixed CBOR record and appends it.
func (b *FileBackend) Apply(ops []PageOp) error {
	data, err := EncodePageOps(ops)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := b.w.Write(lenBuf[:]); err != nil {
		return wrapExternalError(err)
	}
	if _, err := b.w.Write(data); err != nil {
		return wrapExternalError(err)
	}
	return nil
}

// Flush flushes buffered writes to the underlying file without closing it.
func (b *FileBackend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return wrapExternalError(b.w.Flush())
}

// Close flushes and closes the backing file.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.w.Flush(); err != nil {
		return wrapExternalError(err)
	}
	return wrapExternalError(b.f.Close())
}

// ReplayFile reads every diff record a FileBackend wrote to path and
// returns them in order, for tools that reconstruct a PagedStore's final
// state from its log.
func ReplayFile(path string) ([][]PageOp, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapExternalError(err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var diffs [][]PageOp
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, wrapExternalError(err)
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, wrapExternalError(err)
		}
		ops, err := DecodePageOps(data)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, ops)
	}
	return diffs, nil
}
