// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package store is the per-broker segment store: an append-only,
// segmented commit log with a memory-mapped index, segment rotation,
// crash recovery from on-disk state alone, and a zero-copy read path
// that transfers a bounded byte range directly from a data file to a
// socket.
//
// Glossary:
//
//	base    - the logical offset a segment's files are named after
//	position - the next logical offset to be assigned by the broker
//	slot    - one 12-byte (start, size) entry in an index file
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/tysonmote/gommap"
)

var enc = binary.BigEndian

const (
	recordHeaderSize = 12 // 4 bytes payload length + 8 bytes logical offset
	indexEntrySize   = 12 // 8 bytes start + 4 bytes size

	initialIndexBytes = 1024 * indexEntrySize
	indexExpansion    = 512 * indexEntrySize

	basePattern = "%012d"
)

var dataFileRe = regexp.MustCompile(`^(\d{12})\.data$`)

var (
	mmapProt = gommap.PROT_READ | gommap.PROT_WRITE
	mmapFlag = gommap.MAP_SHARED
)

// sealedSegment is an immutable, memory-mapped segment kept open for reads.
type sealedSegment struct {
	base      uint64
	dataFile  *os.File
	indexFile *os.File
	index     gommap.MMap
}

func (s *sealedSegment) close() {
	_ = s.index.UnsafeUnmap()
	_ = s.dataFile.Close()
	_ = s.indexFile.Close()
}

// Store is the segment store for a single broker: exactly one active
// segment receiving appends, plus a bounded cache of sealed segments
// kept open and mmapped for reads.
type Store struct {
	dir string

	mu sync.Mutex // append and read_from both take this exclusively (spec 4.1/5)

	activeBase      uint64
	position        uint64
	dataLen         int64
	activeData      *os.File
	activeIndexFile *os.File
	activeIndex     gommap.MMap
	indexCap        int64

	sealed []*sealedSegment // ascending by base, len <= cacheLimit

	maxFileSize  int64
	pullMaxLimit int64
	cacheLimit   int
}

// Config carries the storage tunables a Store is opened with.
type Config struct {
	MaxFileSize  int64
	PullMaxLimit int64
	CacheLimit   int
}

// Open constructs or rehydrates the segment store rooted at dir. dir
// must already exist. If dir has no segments, a fresh active segment
// is created at base 0; otherwise the largest base becomes the active
// segment and up to CacheLimit-1 of the next-largest are opened
// read-only and mmapped as sealed segments.
func Open(dir string, cfg Config) (*Store, error) {
	if cfg.CacheLimit < 1 {
		cfg.CacheLimit = 1
	}

	s := &Store{
		dir:          dir,
		maxFileSize:  cfg.MaxFileSize,
		pullMaxLimit: cfg.PullMaxLimit,
		cacheLimit:   cfg.CacheLimit,
	}

	bases, err := listBases(dir)
	if err != nil {
		return nil, fmt.Errorf("store: %w", ErrInvalidDir)
	}

	if len(bases) == 0 {
		if err := s.createActive(0); err != nil {
			return nil, err
		}
		return s, nil
	}

	activeBase := bases[len(bases)-1]
	sealedBases := bases[:len(bases)-1]

	// keep only the cacheLimit-1 bases closest to the active segment;
	// rotate() may later grow the sealed cache up to cacheLimit
	if keep := cfg.CacheLimit - 1; len(sealedBases) > keep {
		sealedBases = sealedBases[len(sealedBases)-keep:]
	}

	for _, b := range sealedBases {
		seg, err := openSealed(dir, b)
		if err != nil {
			return nil, err
		}
		s.sealed = append(s.sealed, seg)
	}

	if err := s.openActive(activeBase); err != nil {
		return nil, err
	}

	if err := s.recoverPosition(); err != nil {
		return nil, err
	}

	return s, nil
}

func listBases(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var bases []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		m := dataFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}

		base, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}

		bases = append(bases, base)
	}

	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	return bases, nil
}

func dataPath(dir string, base uint64) string {
	return filepath.Join(dir, fmt.Sprintf(basePattern+".data", base))
}

func indexPath(dir string, base uint64) string {
	return filepath.Join(dir, fmt.Sprintf(basePattern+".index", base))
}

func openSealed(dir string, base uint64) (*sealedSegment, error) {
	df, err := os.OpenFile(dataPath(dir, base), os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("store: open sealed data %012d: %w", base, err)
	}

	idxf, err := os.OpenFile(indexPath(dir, base), os.O_RDONLY, 0)
	if err != nil {
		_ = df.Close()
		return nil, fmt.Errorf("store: open sealed index %012d: %w", base, err)
	}

	idx, err := gommap.Map(idxf.Fd(), gommap.PROT_READ, gommap.MAP_SHARED)
	if err != nil {
		_ = df.Close()
		_ = idxf.Close()
		return nil, fmt.Errorf("store: mmap sealed index %012d: %w", base, err)
	}

	return &sealedSegment{base: base, dataFile: df, indexFile: idxf, index: idx}, nil
}

// createActive creates a brand-new active data/index pair at base and
// installs it, assuming no files currently exist for that base.
func (s *Store) createActive(base uint64) error {
	df, err := os.OpenFile(dataPath(s.dir, base), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("store: create data segment %012d: %w", base, err)
	}

	idxf, err := os.OpenFile(indexPath(s.dir, base), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		_ = df.Close()
		return fmt.Errorf("store: create index segment %012d: %w", base, err)
	}

	if err := idxf.Truncate(initialIndexBytes); err != nil {
		_ = df.Close()
		_ = idxf.Close()
		return fmt.Errorf("store: preallocate index segment %012d: %w", base, err)
	}

	idx, err := gommap.Map(idxf.Fd(), mmapProt, mmapFlag)
	if err != nil {
		_ = df.Close()
		_ = idxf.Close()
		return fmt.Errorf("store: mmap index segment %012d: %w", base, err)
	}

	s.activeBase = base
	s.position = base
	s.dataLen = 0
	s.activeData = df
	s.activeIndexFile = idxf
	s.activeIndex = idx
	s.indexCap = initialIndexBytes

	return nil
}

// openActive opens an existing active data/index pair at base without
// touching position/dataLen, which recoverPosition derives afterward.
func (s *Store) openActive(base uint64) error {
	df, err := os.OpenFile(dataPath(s.dir, base), os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("store: open active data %012d: %w", base, err)
	}

	idxf, err := os.OpenFile(indexPath(s.dir, base), os.O_RDWR, 0644)
	if err != nil {
		_ = df.Close()
		return fmt.Errorf("store: open active index %012d: %w", base, err)
	}

	fi, err := idxf.Stat()
	if err != nil {
		_ = df.Close()
		_ = idxf.Close()
		return fmt.Errorf("store: stat active index %012d: %w", base, err)
	}

	idx, err := gommap.Map(idxf.Fd(), mmapProt, mmapFlag)
	if err != nil {
		_ = df.Close()
		_ = idxf.Close()
		return fmt.Errorf("store: mmap active index %012d: %w", base, err)
	}

	di, err := df.Stat()
	if err != nil {
		_ = df.Close()
		_ = idxf.Close()
		return fmt.Errorf("store: stat active data %012d: %w", base, err)
	}

	s.activeBase = base
	s.activeData = df
	s.activeIndexFile = idxf
	s.activeIndex = idx
	s.indexCap = fi.Size()
	s.dataLen = di.Size()

	return nil
}

// recoverPosition scans the active index slot by slot and sets
// position to base + (index of the first all-zero slot).
func (s *Store) recoverPosition() error {
	slots := s.indexCap / indexEntrySize
	s.position = s.activeBase

	for i := int64(0); i < slots; i++ {
		start, size := readSlot(s.activeIndex, i)
		if start == 0 && size == 0 {
			s.position = s.activeBase + uint64(i)
			return nil
		}
	}

	// every preallocated slot is written; position sits at the end
	s.position = s.activeBase + uint64(slots)
	return nil
}

func readSlot(m gommap.MMap, slot int64) (start uint64, size uint32) {
	off := slot * indexEntrySize
	start = enc.Uint64(m[off : off+8])
	size = enc.Uint32(m[off+8 : off+12])
	return
}

func writeSlot(m gommap.MMap, slot int64, start uint64, size uint32) {
	off := slot * indexEntrySize
	enc.PutUint64(m[off:off+8], start)
	enc.PutUint32(m[off+8:off+12], size)
}

func clearSlot(m gommap.MMap, slot int64) {
	off := slot * indexEntrySize
	for i := off; i < off+indexEntrySize; i++ {
		m[i] = 0
	}
}

// Position returns the next logical offset to be assigned.
func (s *Store) Position() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// ActiveBase returns the base offset of the currently active segment.
func (s *Store) ActiveBase() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeBase
}

// Append writes payload as the next record in the broker's log,
// rotating the active segment first if the record (12-byte header plus
// payload) would overflow max_file_size. An empty active segment is
// never rotated, so a single record larger than max_file_size still
// gets written. It returns the logical offset assigned to the record.
func (s *Store) Append(payload []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dataLen > 0 && s.dataLen+recordHeaderSize+int64(len(payload)) > s.maxFileSize {
		if err := s.rotate(); err != nil {
			return 0, err
		}
	}

	if err := s.ensureIndexCapacity(); err != nil {
		return 0, err
	}

	assigned := s.position
	start := s.dataLen

	header := make([]byte, recordHeaderSize)
	enc.PutUint32(header[0:4], uint32(len(payload)))
	enc.PutUint64(header[4:12], assigned)

	if _, err := s.activeData.Write(header); err != nil {
		return 0, fmt.Errorf("store: write record header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := s.activeData.Write(payload); err != nil {
			return 0, fmt.Errorf("store: write record payload: %w", err)
		}
	}

	written := int64(recordHeaderSize + len(payload))
	s.dataLen += written

	slot := int64(assigned - s.activeBase)
	writeSlot(s.activeIndex, slot, uint64(start), uint32(written))
	if (slot+2)*indexEntrySize <= s.indexCap {
		clearSlot(s.activeIndex, slot+1)
	}

	s.position++
	return assigned, nil
}

// ensureIndexCapacity grows (and remaps) the active index file if the
// next two slots (the one about to be written plus its zero
// high-water marker) don't fit yet.
func (s *Store) ensureIndexCapacity() error {
	needed := (int64(s.position-s.activeBase) + 2) * indexEntrySize
	if needed <= s.indexCap {
		return nil
	}

	newSize := s.indexCap
	for newSize < needed {
		newSize += indexExpansion
	}

	if err := s.activeIndex.UnsafeUnmap(); err != nil {
		return fmt.Errorf("store: unmap index before expand: %w", err)
	}

	if err := s.activeIndexFile.Truncate(newSize); err != nil {
		return fmt.Errorf("store: expand index file: %w", err)
	}

	idx, err := gommap.Map(s.activeIndexFile.Fd(), mmapProt, mmapFlag)
	if err != nil {
		return fmt.Errorf("store: remap expanded index: %w", err)
	}

	s.activeIndex = idx
	s.indexCap = newSize
	return nil
}

// rotate seals the current active segment (reopening it read-only as
// a cached sealed segment, evicting the oldest cached entry if
// needed) and creates a new active segment at the current position.
func (s *Store) rotate() error {
	oldBase := s.activeBase

	if err := s.activeIndex.Sync(gommap.MS_SYNC); err != nil {
		return fmt.Errorf("store: sync index before seal: %w", err)
	}
	if err := s.activeIndex.UnsafeUnmap(); err != nil {
		return fmt.Errorf("store: unmap index before seal: %w", err)
	}
	if err := s.activeIndexFile.Close(); err != nil {
		return fmt.Errorf("store: close index before seal: %w", err)
	}
	if err := s.activeData.Close(); err != nil {
		return fmt.Errorf("store: close data before seal: %w", err)
	}

	sealed, err := openSealed(s.dir, oldBase)
	if err != nil {
		return err
	}

	if len(s.sealed)+1 > s.cacheLimit {
		evict := s.sealed[0]
		evict.close()
		s.sealed = s.sealed[1:]
	}
	s.sealed = append(s.sealed, sealed)

	return s.createActive(s.position)
}

// Close releases all file descriptors and memory mappings held by
// the store. It does not remove any on-disk state.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	note(s.activeIndex.UnsafeUnmap())
	note(s.activeIndexFile.Close())
	note(s.activeData.Close())

	for _, seg := range s.sealed {
		seg.close()
	}
	s.sealed = nil

	return firstErr
}
