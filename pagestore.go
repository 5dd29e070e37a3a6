package hashdag

import (
	"sync"
	"sync/atomic"
)

// PageOp is one entry of a Flush diff, per spec.md §6.
type PageOp struct {
	PageID uint32
	Unbind bool // if true, the page was freed; Offset/Words are unused
	Offset uint32
	Words  []uint32
}

// Backend is the external collaborator a PagedStore flushes its diff to.
// Implementations may batch ops and are responsible for any device
// synchronization; the PagedStore never assumes anything about the
// backend beyond this interface (spec.md §1, §6).
type Backend interface {
	Apply(ops []PageOp) error
}

// page is one fixed-size slot of a PagedStore's address space. words is
// published with an atomic store after being fully written, so a
// concurrent ReadPage can load it without taking mu (spec.md §4.1's
// lock-free-read / acquire-release discipline, expressed with Go's
// atomic.Pointer instead of raw memory fences).
type page struct {
	mu      sync.Mutex
	words   atomic.Pointer[[]uint32]
	dirtyLo uint32
	dirtyHi uint32
	freed   bool
}

// PagedStore is the address space of spec.md §4.1: PageCount fixed-size
// pages of WordsPerPage words each, lazily materialized on first write.
type PagedStore struct {
	wordsPerPage int
	pages        []page

	trackMu sync.Mutex // guards dirtyIDs/freedIDs below; Flush requires single-threaded access per spec.md §4.1
	dirtyIDs map[uint32]struct{}
	freedIDs map[uint32]struct{}
}

// NewPagedStore allocates a PagedStore with the given page count and
// words-per-page. No backing memory is allocated for any page until it
// is first written.
func NewPagedStore(pageCount int, wordsPerPage int) *PagedStore {
	return &PagedStore{
		wordsPerPage: wordsPerPage,
		pages:        make([]page, pageCount),
		dirtyIDs:     make(map[uint32]struct{}),
		freedIDs:     make(map[uint32]struct{}),
	}
}

// WordsPerPage returns the fixed page size in words.
func (s *PagedStore) WordsPerPage() int { return s.wordsPerPage }

// PageCount returns the number of pages in the address space.
func (s *PagedStore) PageCount() int { return len(s.pages) }

func zerosOfLen(n int) []uint32 { return make([]uint32, n) }

// ReadPage returns pageID's word buffer. Never-written pages return the
// all-zeros sentinel; this is always safe, per spec.md §4.1.
func (s *PagedStore) ReadPage(pageID uint32) []uint32 {
	p := &s.pages[pageID]
	words := p.words.Load()
	if words == nil {
		return zerosOfLen(s.wordsPerPage)
	}
	return *words
}

// WritePage materializes pageID on first write, copies offset..offset+len(words)
// into it, and extends the page's dirty range. Copying the whole page on
// every write keeps previously-published snapshots (held by concurrent
// readers) immutable, which is what lets ReadPage skip locking entirely.
func (s *PagedStore) WritePage(pageID uint32, offset int, words []uint32) {
	p := &s.pages[pageID]

	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.words.Load()
	buf := make([]uint32, s.wordsPerPage)
	if cur != nil {
		copy(buf, *cur)
	}
	copy(buf[offset:offset+len(words)], words)

	p.freed = false
	if offset < int(p.dirtyLo) || p.dirtyLo == p.dirtyHi {
		p.dirtyLo = uint32(offset)
	}
	if end := uint32(offset + len(words)); end > p.dirtyHi {
		p.dirtyHi = end
	}

	p.words.Store(&buf)

	s.trackMu.Lock()
	s.dirtyIDs[pageID] = struct{}{}
	delete(s.freedIDs, pageID)
	s.trackMu.Unlock()
}

// ZeroPage is equivalent to WritePage with a run of zeros; it still
// marks the range dirty.
func (s *PagedStore) ZeroPage(pageID uint32, offset int, count int) {
	s.WritePage(pageID, offset, zerosOfLen(count))
}

// FreePage releases pageID's buffer and records the free for the next
// Flush to emit as an Unbind.
func (s *PagedStore) FreePage(pageID uint32) {
	p := &s.pages[pageID]

	p.mu.Lock()
	p.words.Store(nil)
	p.freed = true
	p.dirtyLo, p.dirtyHi = 0, 0
	p.mu.Unlock()

	s.trackMu.Lock()
	delete(s.dirtyIDs, pageID)
	s.freedIDs[pageID] = struct{}{}
	s.trackMu.Unlock()
}

// Flush emits a diff of every dirty and freed page since the last Flush,
// applies it to backend, and clears both tracking sets. Must not be
// called concurrently with other PagedStore writes (spec.md §4.1).
func (s *PagedStore) Flush(backend Backend) error {
	s.trackMu.Lock()
	ops := make([]PageOp, 0, len(s.dirtyIDs)+len(s.freedIDs))

	for pageID := range s.dirtyIDs {
		p := &s.pages[pageID]
		p.mu.Lock()
		lo, hi := p.dirtyLo, p.dirtyHi
		words := p.words.Load()
		p.mu.Unlock()

		if words == nil || lo >= hi {
			continue
		}
		ops = append(ops, PageOp{
			PageID: pageID,
			Offset: lo,
			Words:  append([]uint32(nil), (*words)[lo:hi]...),
		})
	}
	for pageID := range s.freedIDs {
		ops = append(ops, PageOp{PageID: pageID, Unbind: true})
	}

	s.dirtyIDs = make(map[uint32]struct{})
	s.freedIDs = make(map[uint32]struct{})
	s.trackMu.Unlock()

	if err := backend.Apply(ops); err != nil {
		return wrapExternalError(err)
	}

	s.resetDirtyRanges(ops)
	return nil
}

// resetDirtyRanges zeroes the dirty-range bookkeeping of every page named
// in ops, now that it has been committed to the backend.
func (s *PagedStore) resetDirtyRanges(ops []PageOp) {
	for _, op := range ops {
		if op.Unbind {
			continue
		}
		p := &s.pages[op.PageID]
		p.mu.Lock()
		p.dirtyLo, p.dirtyHi = 0, 0
		p.mu.Unlock()
	}
}

// Stats reports coarse page-level bookkeeping, in the spirit of the
// teacher's BaseStorageUsageReporter.
type PagedStoreStats struct {
	Resident int
	Dirty    int
	Freed    int
}

func (s *PagedStore) Stats() PagedStoreStats {
	var resident int
	for i := range s.pages {
		if s.pages[i].words.Load() != nil {
			resident++
		}
	}
	s.trackMu.Lock()
	dirty, freed := len(s.dirtyIDs), len(s.freedIDs)
	s.trackMu.Unlock()
	return PagedStoreStats{Resident: resident, Dirty: dirty, Freed: freed}
}

// PagedVector is the "safe paged vector" of spec.md §4.1: an
// append-only, atomically-sized vector layered over a PagedStore. Appends
// are locked; reads of already-published indices are lock-free.
type PagedVector struct {
	store         *PagedStore
	usedWords     atomic.Uint32
	capacityWords uint32
	appendMu      sync.Mutex
}

// NewPagedVector wraps store, whose full page×word capacity becomes the
// vector's word capacity.
func NewPagedVector(store *PagedStore) *PagedVector {
	return &PagedVector{
		store:         store,
		capacityWords: uint32(store.PageCount() * store.WordsPerPage()),
	}
}

// UsedWords returns the number of words appended so far.
func (v *PagedVector) UsedWords() uint32 { return v.usedWords.Load() }

// Append writes words at the vector's current tail and returns the word
// index it was written at, or an error if the vector is out of pages.
func (v *PagedVector) Append(words []uint32) (uint32, error) {
	v.appendMu.Lock()
	defer v.appendMu.Unlock()

	start := v.usedWords.Load()
	end := start + uint32(len(words))
	if end > v.capacityWords {
		return 0, newPageFullError(len(words))
	}

	v.writeRange(start, words)
	v.usedWords.Store(end) // release: publishes [start, end) to lock-free readers
	return start, nil
}

// ReadWords returns the n words starting at word index start. start+n
// must not exceed UsedWords(); the caller (NodePool/ColorPool) enforces
// this by construction, since indices it hands out always come from a
// prior successful Append.
func (v *PagedVector) ReadWords(start, n uint32) []uint32 {
	return readWordRange(v.store, start, n)
}

// writeRange splits [start, start+len(words)) across pages and writes
// each page-local slice with WritePage.
func (v *PagedVector) writeRange(start uint32, words []uint32) {
	writeWordRange(v.store, start, words)
}

// readWordRange reads n words starting at global word offset start,
// splitting the read across whatever pages it spans. Shared by
// PagedVector and NodePool/ColorPool, whose bucket/node addressing is
// also flat global-word offsets into a PagedStore.
func readWordRange(store *PagedStore, start, n uint32) []uint32 {
	out := make([]uint32, n)
	wordsPerPage := uint32(store.WordsPerPage())

	for filled := uint32(0); filled < n; {
		word := start + filled
		pageID := word / wordsPerPage
		offset := word % wordsPerPage
		pageWords := store.ReadPage(pageID)

		chunk := wordsPerPage - offset
		if remaining := n - filled; chunk > remaining {
			chunk = remaining
		}
		copy(out[filled:filled+chunk], pageWords[offset:offset+chunk])
		filled += chunk
	}
	return out
}

// writeWordRange splits [start, start+len(words)) across pages and
// writes each page-local slice with WritePage.
func writeWordRange(store *PagedStore, start uint32, words []uint32) {
	wordsPerPage := uint32(store.WordsPerPage())

	for filled := 0; filled < len(words); {
		word := start + uint32(filled)
		pageID := word / wordsPerPage
		offset := word % wordsPerPage

		chunk := wordsPerPage - offset
		if remaining := uint32(len(words) - filled); chunk > remaining {
			chunk = remaining
		}
		store.WritePage(pageID, int(offset), words[filled:filled+int(chunk)])
		filled += int(chunk)
	}
}
