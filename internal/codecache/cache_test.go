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

package codecache

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cloudwego/mipsjit/internal/emitter"
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	pcA = 0x80000100
	pcB = 0x80001200
	pcC = 0x80002300
)

func newCache(size int, pages int) *Cache {
	return New(NewHeapArena(size), Config{MaxPages: pages, MaxCells: 16})
}

func result(c *Cache, targets ...uint32) emitter.Result {
	var exits []emitter.Exit
	p := hir.CreateBuilder()

	/* one link per target */
	for _, t := range targets {
		if cell, ok := c.AllocCell(); ok {
			p.LINK(cell)
			exits = append(exits, emitter.Exit{Target: t, Cell: cell})
		}
	}

	/* then leave */
	p.EXIT(hir.ExitNext)
	return emitter.Result{Program: p.Build(), Exits: exits, Count: 1}
}

func insert(t *testing.T, c *Cache, pc uint32, n int, targets ...uint32) *Block {
	b, err := c.Insert(pc, result(c, targets...), make([]byte, n))
	require.NoError(t, err)
	return b
}

func requireBalanced(t *testing.T, c *Cache) {
	require.Equal(t, c.Capacity(), c.BytesAvailable()+c.BytesUsed(), spew.Sdump(c.Stats()))
}

func origins(c *Cache) (ret []uint32) {
	c.Walk(func(_ int, origin uint32) { ret = append(ret, origin) })
	return
}

func TestCache_InsertLookup(t *testing.T) {
	c := newCache(1024, 4)
	b := insert(t, c, pcA, 100)
	requireBalanced(t, c)
	require.Equal(t, 128, c.BytesUsed())
	require.Equal(t, c.Capacity()-128, c.ContiguousFree())

	/* the mapped slot */
	v, st := c.Lookup(pcA)
	require.Equal(t, Live, st)
	require.Same(t, b, v)

	/* its neighbours */
	_, st = c.Lookup(pcA + 4)
	require.Equal(t, NotCompiled, st)
	_, st = c.Lookup(pcB)
	require.Equal(t, NotCompiled, st)

	/* the header carries the guest address */
	origin, next := c.Header(b.Offset())
	require.Equal(t, uint32(pcA), origin)
	require.Equal(t, 128, next)
	require.Equal(t, c.mem.Base()+HeaderSize, b.Entry)
	require.Same(t, b.Program.Head, c.Resolve(b.Entry))
}

func TestCache_EvictOldest(t *testing.T) {
	c := newCache(1024, 4)
	for i := uint32(0); i < 4; i++ {
		insert(t, c, pcA+i*4, 240)
		requireBalanced(t, c)
	}

	/* the ring is full */
	require.Equal(t, 0, c.ContiguousFree())
	require.Equal(t, 0, c.BytesAvailable())

	/* the fifth block pushes out the first one */
	insert(t, c, pcA+16, 240)
	requireBalanced(t, c)
	require.Equal(t, 1, c.Stats().Evictions)
	_, st := c.Lookup(pcA)
	require.Equal(t, Invalidated, st)
	_, st = c.Lookup(pcA + 4)
	require.Equal(t, Live, st)
	require.Equal(t, []uint32{pcA + 4, pcA + 8, pcA + 12, pcA + 16}, origins(c))
}

func TestCache_Wraparound(t *testing.T) {
	c := newCache(1024, 4)
	insert(t, c, pcA, 400)
	b := insert(t, c, pcB, 400)
	require.Equal(t, 192, c.ContiguousFree())

	/* the tail is too short, the block goes to the front */
	v := insert(t, c, pcC, 300)
	requireBalanced(t, c)
	require.Equal(t, 0, v.Offset())
	require.Equal(t, 608, b.Size())
	require.Equal(t, 96, c.BytesAvailable())

	/* the headers still chain the live region */
	_, next := c.Header(b.Offset())
	require.Equal(t, 0, next)
	require.Equal(t, []uint32{pcB, pcC}, origins(c))
}

func TestCache_TooLarge(t *testing.T) {
	c := newCache(1024, 4)
	insert(t, c, pcA, 100)
	_, err := c.Insert(pcB, result(c, pcA), make([]byte, 1024))
	require.Equal(t, ErrTooLarge, errors.Cause(err))

	/* nothing was evicted, the cell was returned */
	_, st := c.Lookup(pcA)
	require.Equal(t, Live, st)
	require.Equal(t, 16, c.Stats().FreeCells)
	requireBalanced(t, c)
}

func TestCache_PageLimit(t *testing.T) {
	c := newCache(4096, 2)
	insert(t, c, pcA, 16)
	insert(t, c, pcB, 16)
	insert(t, c, pcB+4, 16)

	/* a third page does not fit */
	_, err := c.Insert(pcC, result(c), make([]byte, 16))
	require.Equal(t, ErrPageLimit, errors.Cause(err))

	/* until one is released */
	require.Equal(t, 1, c.InvalidatePage(pcA>>PageBits))
	insert(t, c, pcC, 16)
	require.Equal(t, 2, c.Stats().Pages)
}

func TestCache_Unaligned(t *testing.T) {
	c := newCache(1024, 4)
	_, err := c.Insert(pcA+2, result(c), make([]byte, 16))
	require.Equal(t, ErrUnaligned, errors.Cause(err))
	require.Equal(t, 0, c.Blocks())
}

func TestCache_Links(t *testing.T) {
	c := newCache(4096, 4)
	a := insert(t, c, pcA, 32, pcB)
	cell := a.exits[0].Cell

	/* the target is not compiled yet */
	require.Equal(t, uintptr(0), c.Cell(cell))

	/* compiling it fills the cell */
	b := insert(t, c, pcB, 32)
	require.Equal(t, b.Entry, c.Cell(cell))
	require.Equal(t, 1, c.Stats().Links)

	/* invalidating the target empties it again */
	require.Equal(t, 1, c.InvalidatePage(pcB>>PageBits))
	require.Equal(t, uintptr(0), c.Cell(cell))
	_, st := c.Lookup(pcB)
	require.Equal(t, Invalidated, st)
	_, st = c.Lookup(pcB + 4)
	require.Equal(t, Invalidated, st)
	origin, _ := c.Header(b.Offset())
	require.Zero(t, origin)

	/* and a new translation is linked again */
	b2 := insert(t, c, pcB, 32)
	require.Equal(t, b2.Entry, c.Cell(cell))
	_, st = c.Lookup(pcB + 4)
	require.Equal(t, Invalidated, st)
}

func TestCache_SelfLink(t *testing.T) {
	c := newCache(4096, 4)
	a := insert(t, c, pcA, 32, pcA)
	require.Equal(t, a.Entry, c.Cell(a.exits[0].Cell))

	/* evicting it returns the cell */
	c.Flush()
	requireBalanced(t, c)
	require.Equal(t, 0, c.Stats().Links)
	require.Equal(t, 16, c.Stats().FreeCells)
	require.Empty(t, c.pending)
}

func TestCache_Supersede(t *testing.T) {
	c := newCache(4096, 4)
	a := insert(t, c, pcA, 32, pcB)
	b := insert(t, c, pcB, 32)
	cell := a.exits[0].Cell
	require.Equal(t, b.Entry, c.Cell(cell))

	/* a newer translation takes over the address and its links */
	b2 := insert(t, c, pcB, 64)
	v, _ := c.Lookup(pcB)
	require.Same(t, b2, v)
	require.Equal(t, b2.Entry, c.Cell(cell))
	origin, _ := c.Header(b.Offset())
	require.Zero(t, origin)

	/* evicting the old block leaves the new mapping alone */
	require.True(t, c.Evict())
	require.True(t, c.Evict())
	v, st := c.Lookup(pcB)
	require.Equal(t, Live, st)
	require.Same(t, b2, v)
	requireBalanced(t, c)
}

func TestCache_EvictUnlinks(t *testing.T) {
	c := newCache(4096, 4)
	b := insert(t, c, pcB, 32)
	a := insert(t, c, pcA, 32, pcB)
	cell := a.exits[0].Cell
	require.Equal(t, b.Entry, c.Cell(cell))

	/* the oldest block is the target */
	require.True(t, c.Evict())
	require.Equal(t, uintptr(0), c.Cell(cell))
	require.Nil(t, c.Resolve(b.Entry))
	require.True(t, c.pending[pcB].Contains(cell))
}

func TestCache_InvalidateAll(t *testing.T) {
	c := newCache(4096, 4)
	insert(t, c, pcA, 32)
	insert(t, c, pcB, 32)
	insert(t, c, pcC, 32)
	c.InvalidateAll()

	/* everything is retired but still occupies the ring */
	for _, pc := range []uint32{pcA, pcB, pcC} {
		_, st := c.Lookup(pc)
		require.Equal(t, Invalidated, st)
	}
	require.Equal(t, []uint32{0, 0, 0}, origins(c))
	require.Equal(t, 3, c.Blocks())
	require.Equal(t, 0, c.Stats().Pages)
	requireBalanced(t, c)
}

func TestCache_RandomOperations(t *testing.T) {
	faker := gofakeit.New(20250317)
	c := newCache(2048, 8)
	live := map[uint32]*Block{}

	for i := 0; i < 2000; i++ {
		pc := 0x80000000 | uint32(faker.IntRange(0, 7))<<PageBits | uint32(faker.IntRange(0, 15))<<2
		switch faker.IntRange(0, 9) {
		case 0:
			c.InvalidatePage(pc >> PageBits)
		case 1:
			c.Evict()
		default:
			var to []uint32
			for j := faker.IntRange(0, 2); j > 0; j-- {
				to = append(to, 0x80000000|uint32(faker.IntRange(0, 7))<<PageBits|uint32(faker.IntRange(0, 15))<<2)
			}
			b, err := c.Insert(pc, result(c, to...), make([]byte, faker.IntRange(1, 300)))
			require.NoError(t, err)
			live[pc] = b
		}

		/* the ring accounting always balances */
		requireBalanced(t, c)
		offs := map[int]uint32{}
		c.Walk(func(off int, origin uint32) { offs[off] = origin })
		require.Len(t, offs, c.Blocks())

		/* mapped blocks are never stale */
		for pc := range live {
			if b, st := c.Lookup(pc); st == Live {
				require.Equal(t, pc, offs[b.Offset()])
				require.Same(t, b.Program.Head, c.Resolve(b.Entry))
			}
		}

		/* linked cells point at mapped blocks */
		for cell, e := range c.cells {
			if e != 0 {
				b, st := c.Lookup(c.target[cell])
				require.Equal(t, Live, st)
				require.Equal(t, b.Entry, e)
			}
		}
	}
}
