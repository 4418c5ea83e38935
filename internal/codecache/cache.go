/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package codecache keeps translated traces in a ring buffer and maps guest
// addresses to them.
//
// Every block is preceded by a header of two host-order words, the guest
// address it was translated from (0 once it is retired) and the offset of
// the following header. Blocks are evicted oldest first.
package codecache

import (
	"encoding/binary"
	"unsafe"

	"github.com/cloudwego/mipsjit/internal/emitter"
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/log"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/oleiade/lane"
	"github.com/pkg/errors"
	"github.com/willf/bitset"
)

const (
	HeaderSize = 16
	PageBits   = 12
)

const (
	_Align     = 16
	_PageMask  = 1<<PageBits - 1
	_PageCount = 1 << (32 - PageBits)
	_SlotCount = 1 << (PageBits - 2)
)

var (
	ErrTooLarge  = errors.New("trace does not fit in the code cache")
	ErrPageLimit = errors.New("page table limit reached")
	ErrUnaligned = errors.New("unaligned trace address")
)

// State is the state of a guest address in the map.
type State uint8

const (
	NotCompiled State = iota
	Invalidated
	Live
)

func (self State) String() string {
	switch self {
	case NotCompiled:
		return "not compiled"
	case Invalidated:
		return "invalidated"
	default:
		return "live"
	}
}

// Block is a translated trace held by the cache.
type Block struct {
	Origin  uint32
	Entry   uintptr
	Count   int
	Program hir.Program

	off   int
	size  int
	exits []emitter.Exit
	links mapset.Set[int]
}

// Offset is the position of the block header in the arena.
func (self *Block) Offset() int {
	return self.off
}

func (self *Block) Size() int {
	return self.size
}

var (
	_NotCompiled = new(Block)
	_Invalidated = new(Block)
)

type _Page struct {
	live  int
	slots [_SlotCount]*Block
}

func newPage(fill *Block) *_Page {
	p := new(_Page)
	for i := range p.slots {
		p.slots[i] = fill
	}
	return p
}

// _DeadPage stands in for every released page that once held code.
var _DeadPage = newPage(_Invalidated)

type Config struct {
	MaxPages int
	MaxCells int
}

const (
	DefaultMaxPages = 4096
	DefaultMaxCells = 1 << 16
)

// Cache is not safe for concurrent use.
type Cache struct {
	mem      Arena
	used     int
	first    int
	next     int
	blocks   *lane.Deque
	entries  map[uintptr]*Block
	outer    []*_Page
	pages    *bitset.BitSet
	maxPages uint
	stats    Stats

	/* link cells */
	cells   []uintptr
	owner   []*Block
	target  []uint32
	linked  []*Block
	free    *lane.Stack
	pending map[uint32]mapset.Set[int]
}

// New creates a cache over mem. Zero fields of cfg take their defaults.
func New(mem Arena, cfg Config) *Cache {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.MaxCells <= 0 {
		cfg.MaxCells = DefaultMaxCells
	}

	/* create the cache */
	ret := &Cache{
		mem:      mem,
		blocks:   lane.NewDeque(),
		entries:  make(map[uintptr]*Block),
		outer:    make([]*_Page, _PageCount),
		pages:    bitset.New(_PageCount),
		maxPages: uint(cfg.MaxPages),
		cells:    make([]uintptr, cfg.MaxCells),
		owner:    make([]*Block, cfg.MaxCells),
		target:   make([]uint32, cfg.MaxCells),
		linked:   make([]*Block, cfg.MaxCells),
		free:     lane.NewStack(),
		pending:  make(map[uint32]mapset.Set[int]),
	}

	/* cells are handed out lowest first */
	for i := cfg.MaxCells - 1; i >= 0; i-- {
		ret.free.Push(i)
	}
	return ret
}

func align(n int) int {
	return (n + _Align - 1) &^ (_Align - 1)
}

/** Space Accounting **/

func (self *Cache) Capacity() int {
	return self.mem.Size()
}

func (self *Cache) BytesUsed() int {
	return self.used
}

func (self *Cache) BytesAvailable() int {
	return self.mem.Size() - self.used
}

func (self *Cache) Blocks() int {
	return self.blocks.Size()
}

// ContiguousFree is the largest block, header included, that fits without
// evicting anything.
func (self *Cache) ContiguousFree() int {
	size := self.mem.Size()
	switch {
	case self.blocks.Empty():
		return size
	case self.next > self.first:
		return maxInt(size-self.next, self.first)
	case self.next < self.first:
		return self.first - self.next
	default:
		return 0
	}
}

// Budget is the largest program that fits without evicting anything.
func (self *Cache) Budget() int {
	return maxInt(self.ContiguousFree()-HeaderSize, 0)
}

func (self *Cache) fit(size int) (int, bool) {
	total := self.mem.Size()
	switch {
	case self.blocks.Empty():
		return 0, size <= total
	case self.next > self.first && size <= total-self.next:
		return self.next, true
	case self.next > self.first:
		return 0, size <= self.first
	case self.next < self.first:
		return self.next, size <= self.first-self.next
	default:
		return 0, false
	}
}

// Reserve evicts the oldest blocks until a program of n bytes fits, and
// returns the offset its header goes to.
func (self *Cache) Reserve(n int) (int, error) {
	size := align(HeaderSize + n)
	if size > self.mem.Size() {
		return 0, errors.Wrapf(ErrTooLarge, "%d bytes", n)
	}

	/* the cache drains completely in the worst case */
	for {
		if off, ok := self.fit(size); ok {
			return off, nil
		} else if !self.Evict() {
			panic("codecache: empty cache cannot fit the block")
		}
	}
}

func (self *Cache) push(b *Block) {
	total := self.mem.Size()

	/* the newest block absorbs the tail when the buffer wraps */
	if !self.blocks.Empty() && b.off != self.next {
		last := self.blocks.Last().(*Block)
		last.size += total - self.next
		self.used += total - self.next
		self.tag(last, last.Origin)
	}

	/* the first block of an empty cache */
	if self.blocks.Empty() {
		self.first = b.off
	}

	/* append the block */
	self.blocks.Append(b)
	self.used += b.size
	self.next = (b.off + b.size) % total
	self.bump(&self.stats.Blocks, &BlockCount, 1)
	self.tag(b, 0)
}

/** Block Headers **/

func (self *Cache) tag(b *Block, origin uint32) {
	var buf [8]byte
	binary.NativeEndian.PutUint32(buf[0:], origin)
	binary.NativeEndian.PutUint32(buf[4:], uint32((b.off+b.size)%self.mem.Size()))

	/* headers live in the arena, next to the code */
	if err := self.mem.Write(b.off, buf[:]); err != nil {
		panic("codecache: cannot write block header: " + err.Error())
	}
}

// Header reads the block header at off.
func (self *Cache) Header(off int) (origin uint32, next int) {
	buf := self.mem.Bytes(off, 8)
	return binary.NativeEndian.Uint32(buf[0:]), int(binary.NativeEndian.Uint32(buf[4:]))
}

// Walk visits the headers of the live region, oldest first.
func (self *Cache) Walk(fn func(off int, origin uint32)) {
	off := self.first
	for i := 0; i < self.blocks.Size(); i++ {
		origin, next := self.Header(off)
		fn(off, origin)
		off = next
	}
}

/** Insertion **/

// Insert stores the translation of the trace at pc. code is the native code
// of res, or nil when the program runs on the IR emulator. The cache owns
// res from here on, even when Insert fails.
func (self *Cache) Insert(pc uint32, res emitter.Result, code []byte) (*Block, error) {
	n := res.Program.Size
	if code != nil {
		n = len(code)
	}

	/* the map must have room for the page */
	if err := self.check(pc); err != nil {
		self.discard(res)
		log.Error("codecache: cannot map trace", "pc", pc, "err", err)
		return nil, err
	}

	/* make room in the ring */
	off, err := self.Reserve(n)
	if err != nil {
		self.discard(res)
		log.Error("codecache: cannot allocate trace", "pc", pc, "size", n, "err", err)
		return nil, err
	}

	/* the block starts out dead */
	b := &Block{
		Entry:   self.mem.Base() + uintptr(off+HeaderSize),
		Count:   res.Count,
		Program: res.Program,
		off:     off,
		size:    align(HeaderSize + n),
		links:   mapset.NewThreadUnsafeSet[int](),
	}

	/* a block whose code cannot be written is never mapped */
	self.push(b)
	self.entries[b.Entry] = b
	if err = self.mem.Write(off+HeaderSize, code); err != nil {
		self.discard(emitter.Result{Exits: res.Exits})
		log.Error("codecache: cannot write trace", "pc", pc, "err", err)
		return nil, err
	}

	/* map it and tag the header */
	self.place(pc, b)
	b.Origin = pc
	self.tag(b, pc)

	/* traces waiting for this one */
	if s, ok := self.pending[pc]; ok {
		delete(self.pending, pc)
		for _, c := range s.ToSlice() {
			self.link(c, b)
		}
	}

	/* link the exits */
	b.exits = res.Exits
	for _, x := range res.Exits {
		self.bind(x.Cell, x.Target, b)
	}
	return b, nil
}

func (self *Cache) discard(res emitter.Result) {
	res.Program.Free()
	for _, x := range res.Exits {
		self.FreeCell(x.Cell)
	}
}

/** Address Map **/

func (self *Cache) check(pc uint32) error {
	if pc&3 != 0 {
		return errors.Wrapf(ErrUnaligned, "%#08x", pc)
	}

	/* a new inner array is needed */
	if p := self.outer[pc>>PageBits]; p != nil && p != _DeadPage {
		return nil
	} else if self.pages.Count() >= self.maxPages {
		return errors.Wrapf(ErrPageLimit, "%d pages", self.maxPages)
	} else {
		return nil
	}
}

func (self *Cache) place(pc uint32, b *Block) {
	pg := pc >> PageBits
	p := self.outer[pg]

	/* allocate the inner array */
	if p == nil || p == _DeadPage {
		if p == nil {
			p = newPage(_NotCompiled)
		} else {
			p = newPage(_Invalidated)
		}
		self.outer[pg] = p
		self.pages.Set(uint(pg))
	}

	/* an older block at the same address is superseded */
	i := pc & _PageMask >> 2
	if old := p.slots[i]; old != _NotCompiled && old != _Invalidated {
		self.supersede(old, b)
	} else {
		p.live++
	}

	/* update the slot */
	p.slots[i] = b
}

func (self *Cache) supersede(old *Block, b *Block) {
	old.Origin = 0
	self.tag(old, 0)
	self.stats.Supersedes++

	/* traces linked to the old block now enter the new one */
	for _, c := range old.links.ToSlice() {
		self.cells[c] = b.Entry
		self.linked[c] = b
		b.links.Add(c)
	}
	old.links.Clear()
}

// Lookup returns the live block translated from pc, if any.
func (self *Cache) Lookup(pc uint32) (*Block, State) {
	p := self.outer[pc>>PageBits]
	if p == nil {
		return nil, NotCompiled
	}

	/* check the sentinels */
	switch b := p.slots[pc&_PageMask>>2]; b {
	case _NotCompiled:
		return nil, NotCompiled
	case _Invalidated:
		return nil, Invalidated
	default:
		return b, Live
	}
}

// Resolve returns the program of the block entered at entry.
func (self *Cache) Resolve(entry uintptr) *hir.Instr {
	if b := self.entries[entry]; b == nil {
		return nil
	} else {
		return b.Program.Head
	}
}

// InvalidatePage unmaps every block of a guest page and releases its inner
// array. It returns the number of blocks retired.
func (self *Cache) InvalidatePage(page uint32) int {
	n := 0
	p := self.outer[page]

	/* nothing was ever compiled there */
	if p == nil || p == _DeadPage {
		return 0
	}

	/* retire the blocks */
	for _, b := range p.slots {
		if b != _NotCompiled && b != _Invalidated {
			n++
			b.Origin = 0
			self.tag(b, 0)
			self.unlink(b)
		}
	}

	/* release the page */
	self.outer[page] = _DeadPage
	self.pages.Clear(uint(page))
	self.bump(&self.stats.Invalidations, &InvalidateCount, 1)
	return n
}

// InvalidateAll unmaps every block.
func (self *Cache) InvalidateAll() {
	for i, ok := self.pages.NextSet(0); ok; i, ok = self.pages.NextSet(i + 1) {
		self.InvalidatePage(uint32(i))
	}
}

/** Eviction **/

// Evict drops the oldest block. It returns false if the cache is empty.
func (self *Cache) Evict() bool {
	if self.blocks.Empty() {
		return false
	}

	/* remove the oldest block */
	b := self.blocks.Shift().(*Block)
	self.retire(b)
	self.unlink(b)

	/* release the exits */
	for _, x := range b.exits {
		self.FreeCell(x.Cell)
	}

	/* release the memory */
	b.exits = nil
	b.Program.Free()
	b.Program = hir.Program{}
	delete(self.entries, b.Entry)
	self.used -= b.size
	self.bump(&self.stats.Evictions, &EvictCount, 1)
	self.bump(&self.stats.Blocks, &BlockCount, -1)

	/* advance the live region */
	if self.blocks.Empty() {
		self.first, self.next = 0, 0
	} else {
		self.first = self.blocks.First().(*Block).off
	}
	return true
}

// Flush evicts every block.
func (self *Cache) Flush() {
	for self.Evict() {
	}
}

func (self *Cache) retire(b *Block) {
	if b.Origin == 0 {
		return
	}

	/* the slot may be reused by a newer block */
	pg := b.Origin >> PageBits
	p := self.outer[pg]
	if i := b.Origin & _PageMask >> 2; p.slots[i] != b {
		panic("codecache: live block is not mapped")
	} else {
		p.slots[i] = _Invalidated
		p.live--
	}

	/* release the page once it is empty */
	if b.Origin = 0; p.live == 0 {
		self.outer[pg] = _DeadPage
		self.pages.Clear(uint(pg))
	}
}

func (self *Cache) Close() error {
	self.Flush()
	return self.mem.Close()
}

/** Link Cells **/

// Links is the address of the link cell table.
func (self *Cache) Links() uintptr {
	return uintptr(unsafe.Pointer(&self.cells[0]))
}

func (self *Cache) AllocCell() (int, bool) {
	if self.free.Empty() {
		return 0, false
	} else {
		return self.free.Pop().(int), true
	}
}

func (self *Cache) FreeCell(cell int) {
	if self.owner[cell] != nil {
		if t := self.linked[cell]; t != nil {
			t.links.Remove(cell)
			self.bump(&self.stats.Links, &LinkCount, -1)
		} else if s, ok := self.pending[self.target[cell]]; ok {
			if s.Remove(cell); s.Cardinality() == 0 {
				delete(self.pending, self.target[cell])
			}
		}
	}

	/* clear the cell */
	self.cells[cell] = 0
	self.owner[cell] = nil
	self.linked[cell] = nil
	self.target[cell] = 0
	self.free.Push(cell)
}

// Cell returns the entry address stored in a link cell.
func (self *Cache) Cell(cell int) uintptr {
	return self.cells[cell]
}

func (self *Cache) bind(cell int, target uint32, owner *Block) {
	self.owner[cell] = owner
	self.target[cell] = target

	/* link now if the target is live */
	if t, st := self.Lookup(target); st == Live {
		self.link(cell, t)
	} else {
		self.wait(cell)
	}
}

func (self *Cache) link(cell int, t *Block) {
	self.cells[cell] = t.Entry
	self.linked[cell] = t
	t.links.Add(cell)
	self.bump(&self.stats.Links, &LinkCount, 1)
}

func (self *Cache) wait(cell int) {
	pc := self.target[cell]
	s, ok := self.pending[pc]

	/* create the set on demand */
	if !ok {
		s = mapset.NewThreadUnsafeSet[int]()
		self.pending[pc] = s
	}

	/* add to the set */
	s.Add(cell)
}

// unlink points every cell entering b back at the dispatcher.
func (self *Cache) unlink(b *Block) {
	for _, c := range b.links.ToSlice() {
		self.cells[c] = 0
		self.linked[c] = nil
		self.bump(&self.stats.Links, &LinkCount, -1)
		self.wait(c)
	}
	b.links.Clear()
}

func maxInt(a int, b int) int {
	if a > b {
		return a
	} else {
		return b
	}
}
