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

package machine

import (
	"testing"
	"unsafe"

	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) *Context {
	mem, err := NewMemory(1 << 20)
	require.NoError(t, err)
	return NewContext(mem)
}

func TestContext_Layout(t *testing.T) {
	var ctx Context
	assert.Equal(t, int32(0), int32(unsafe.Offsetof(ctx.Header)))
	assert.Equal(t, int32(unsafe.Offsetof(ctx.HI)), GPRLo(mips.HI)-loHalf)
	assert.Equal(t, int32(unsafe.Offsetof(ctx.LO)), GPRLo(mips.LO)-loHalf)
	ctx.GPR[5] = 0x11223344_55667788
	assert.Equal(t, uint32(0x55667788), *(*uint32)(ctx.ptr(GPRLo(5))))
	assert.Equal(t, uint32(0x11223344), *(*uint32)(ctx.ptr(GPRHi(5))))
}

func TestContext_FPRPairing(t *testing.T) {
	ctx := newTestContext(t)

	/* 32 x 64-bit mode */
	ctx.COP0[mips.CP0_STATUS] |= SR_FR
	ctx.SetFS(1, 0x3f800000)
	assert.Equal(t, uint64(0x3f800000), ctx.FPR[1])
	ctx.SetFD(2, 0x40000000_00000000)
	assert.Equal(t, uint64(0x40000000_00000000), ctx.FPR[2])

	/* odd singles are the high halves of even doubles */
	ctx.COP0[mips.CP0_STATUS] &^= SR_FR
	ctx.FPR = [32]uint64{}
	ctx.SetFS(0, 0xaaaaaaaa)
	ctx.SetFS(1, 0xbbbbbbbb)
	assert.Equal(t, uint64(0xbbbbbbbb_aaaaaaaa), ctx.FPR[0])
	assert.Equal(t, uint64(0xbbbbbbbb_aaaaaaaa), ctx.FD(1))
	assert.Equal(t, FPRDouble(0, false), FPRDouble(1, false))
	assert.Equal(t, FPRHalf(0, false, true), FPRSingle(1, false))
}

func TestContext_Regs(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetReg(0, 1)
	ctx.SetReg(mips.HI, 2)
	ctx.SetReg(mips.LO, 3)
	ctx.SetReg(7, 4)
	assert.Equal(t, uint64(0), ctx.Reg(0))
	assert.Equal(t, uint64(2), ctx.HI)
	assert.Equal(t, uint64(3), ctx.LO)
	assert.Equal(t, uint64(4), ctx.Reg(7))
}

func TestMemory_Sizes(t *testing.T) {
	_, err := NewMemory(1000)
	require.Error(t, err)
	_, err = NewMemory(MaxRAM + PageSize)
	require.Error(t, err)
	mem, err := NewMemory(PageSize * 4)
	require.NoError(t, err)
	assert.Len(t, mem.CodePages, 4)
	assert.True(t, mem.InRAM(PageSize*4-8, 8))
	assert.False(t, mem.InRAM(PageSize*4-4, 8))
}

func TestMemory_RAM(t *testing.T) {
	mem, err := NewMemory(PageSize)
	require.NoError(t, err)
	mem.WritePhys(0x10, SizeDouble, 0x0011223344556677)
	assert.Equal(t, uint64(0x00112233), mem.ReadPhys(0x10, SizeWord))
	assert.Equal(t, uint64(0x44556677), mem.ReadPhys(0x14, SizeWord))
	assert.Equal(t, uint64(0x11), mem.ReadPhys(0x11, SizeByte))
	assert.Equal(t, uint64(0x2233), mem.ReadPhys(0x12, SizeHalf))
	mem.WritePhys(0x13, SizeByte, 0xff)
	assert.Equal(t, uint64(0x001122ff), mem.ReadPhys(0x10, SizeWord))
	mem.WritePhys(0x10, SizeHalf, 0xabcd)
	assert.Equal(t, uint64(0xabcd22ff), mem.ReadPhys(0x10, SizeWord))

	/* the host view of a word, swizzled */
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&mem.RAM[0])), PageSize)
	assert.Equal(t, byte(0xab), raw[0x10^ByteSwizzle])
	assert.Equal(t, byte(0xff), raw[0x13^ByteSwizzle])
	assert.Equal(t, uint16(0x22ff), *(*uint16)(unsafe.Pointer(&raw[0x12^HalfSwizzle])))
}

func TestMemory_Dispatch(t *testing.T) {
	var last uint64
	mem, err := NewMemory(PageSize)
	require.NoError(t, err)
	mem.Map(0x04400000, 0x044fffff, func(_ *Memory, p uint32, size int) uint64 {
		return uint64(p) + uint64(size)
	}, func(_ *Memory, _ uint32, _ int, v uint64) {
		last = v
	})
	assert.Equal(t, uint64(0x04400012), mem.ReadPhys(0x04400010, SizeWord))
	mem.WritePhys(0x04400010, SizeWord, 7)
	assert.Equal(t, uint64(7), last)
	assert.Equal(t, uint64(0), mem.ReadPhys(0x05000000, SizeWord))
}

func TestMemory_CodeWrites(t *testing.T) {
	var hits []uint32
	mem, err := NewMemory(PageSize * 2)
	require.NoError(t, err)
	mem.OnCodeWrite = func(p uint32) { hits = append(hits, p) }
	mem.MarkCode(PageSize+8, true)
	mem.WritePhys(0x10, SizeWord, 1)
	mem.WritePhys(PageSize+0x10, SizeByte, 1)
	assert.Equal(t, []uint32{PageSize + 0x10}, hits)
	assert.True(t, mem.IsCode(PageSize))
	mem.MarkCode(PageSize, false)
	assert.False(t, mem.IsCode(PageSize))
}

func TestTranslate_Segments(t *testing.T) {
	ctx := newTestContext(t)
	p, ok := ctx.Translate(0x80001234, false)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x1234), p)
	p, ok = ctx.Translate(0xa4001000, true)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x04001000), p)
	_, ok = ctx.Translate(0x00400000, false)
	assert.False(t, ok)
}

func TestTranslate_TLB(t *testing.T) {
	ctx := newTestContext(t)
	ctx.COP0[mips.CP0_INDEX] = 3
	ctx.COP0[mips.CP0_PAGEMASK] = 0
	ctx.COP0[mips.CP0_ENTRYHI] = 0x00400000 | 5
	ctx.COP0[mips.CP0_ENTRYLO0] = 0x100<<6 | TLB_V | TLB_D
	ctx.COP0[mips.CP0_ENTRYLO1] = 0x200<<6 | TLB_V
	ctx.TLBWrite(false)

	/* even page */
	p, ok := ctx.Translate(0x00400010, true)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x00100010), p)

	/* odd page, read only */
	p, ok = ctx.Translate(0x00401020, false)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x00200020), p)
	_, ok = ctx.TranslateOrRaise(0x00401020, true)
	assert.False(t, ok)
	assert.Equal(t, uint64(EXC_MOD), ctx.COP0[mips.CP0_CAUSE]&CR_CODE>>2)

	/* other ASIDs miss */
	ctx.COP0[mips.CP0_STATUS] &^= SR_EXL
	ctx.COP0[mips.CP0_ENTRYHI] = 6
	_, ok = ctx.Translate(0x00400010, false)
	assert.False(t, ok)

	/* probe and read back */
	ctx.COP0[mips.CP0_ENTRYHI] = 0x00400000 | 5
	ctx.TLBProbe()
	assert.Equal(t, uint64(3), ctx.COP0[mips.CP0_INDEX])
	ctx.COP0[mips.CP0_ENTRYLO0] = 0
	ctx.TLBRead()
	assert.Equal(t, uint64(0x100<<6|TLB_V|TLB_D), ctx.COP0[mips.CP0_ENTRYLO0])
}

func TestTranslate_GoldenEyeQuirk(t *testing.T) {
	ctx := newTestContext(t)
	_, ok := ctx.Translate(0x7f000010, false)
	assert.False(t, ok)
	ctx.Quirk = NewGoldenEyeQuirk()
	p, ok := ctx.Translate(0x7f000010, false)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x10034b40), p)
	p, ok = ctx.Translate(0x80000010, false)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x10), p)
}

func TestException_Refill(t *testing.T) {
	ctx := newTestContext(t)
	ctx.COP0[mips.CP0_STATUS] = SR_FR
	ctx.PC = 0x80001000
	_, ok := ctx.Load(0x00402004, SizeWord)
	assert.False(t, ok)
	assert.Equal(t, uint32(0x80000000), ctx.PC)
	assert.Equal(t, uint64(0xffffffff80001000), ctx.COP0[mips.CP0_EPC])
	assert.Equal(t, uint64(EXC_TLBL<<2), ctx.COP0[mips.CP0_CAUSE]&CR_CODE)
	assert.Equal(t, uint64(0x00402004), ctx.COP0[mips.CP0_BADVADDR])
	assert.Equal(t, uint64(0x00402000), ctx.COP0[mips.CP0_ENTRYHI]&^0xff)
	assert.NotZero(t, ctx.Status()&SR_EXL)
	assert.Equal(t, uint32(1), ctx.Leave)

	/* nested exceptions keep EPC and use the general vector */
	ctx.PC = 0x80000010
	ctx.Store(0x00402004, SizeWord, 0)
	assert.Equal(t, uint32(0x80000180), ctx.PC)
	assert.Equal(t, uint64(0xffffffff80001000), ctx.COP0[mips.CP0_EPC])
	assert.Equal(t, uint64(EXC_TLBS<<2), ctx.COP0[mips.CP0_CAUSE]&CR_CODE)
}

func TestException_DelaySlot(t *testing.T) {
	ctx := newTestContext(t)
	ctx.COP0[mips.CP0_STATUS] = 0
	ctx.PC = 0x80000104
	ctx.Delay = 1
	ctx.RaiseGeneralException(EXC_SYS)
	assert.Equal(t, uint64(0xffffffff80000100), ctx.COP0[mips.CP0_EPC])
	assert.NotZero(t, ctx.COP0[mips.CP0_CAUSE]&CR_BD)
	assert.Equal(t, uint32(0), ctx.Delay)
	ctx.ERET()
	assert.Equal(t, uint32(0x80000100), ctx.PC)
	assert.Zero(t, ctx.Status()&SR_EXL)
}

func TestException_AddressError(t *testing.T) {
	ctx := newTestContext(t)
	ctx.COP0[mips.CP0_STATUS] = SR_BEV
	_, ok := ctx.Load(0x80000002, SizeWord)
	assert.False(t, ok)
	assert.Equal(t, uint32(0xbfc00380), ctx.PC)
	assert.Equal(t, uint64(EXC_ADEL<<2), ctx.COP0[mips.CP0_CAUSE]&CR_CODE)
}

func TestException_Interrupt(t *testing.T) {
	ctx := newTestContext(t)
	ctx.COP0[mips.CP0_STATUS] = SR_IE | CR_IP7
	assert.False(t, ctx.CheckInterrupt())
	ctx.SetIP(CR_IP7, true)
	ctx.COP0[mips.CP0_STATUS] |= SR_EXL
	assert.False(t, ctx.CheckInterrupt())
	ctx.COP0[mips.CP0_STATUS] &^= SR_EXL
	ctx.PC = 0x80000200
	assert.True(t, ctx.CheckInterrupt())
	assert.Equal(t, uint32(0x80000180), ctx.PC)
	assert.Equal(t, uint64(EXC_INT), ctx.COP0[mips.CP0_CAUSE]&CR_CODE)
}

type testHooks struct {
	count   [2]uint32
	compare uint32
	status  [2]uint32
	tlb     int
}

func (self *testHooks) CountWritten(old uint32, new uint32)  { self.count = [2]uint32{old, new} }
func (self *testHooks) CompareWritten(v uint32)              { self.compare = v }
func (self *testHooks) StatusWritten(old uint32, new uint32) { self.status = [2]uint32{old, new} }
func (self *testHooks) TLBWritten(_ TLBEntry, _ TLBEntry)     { self.tlb++ }

func TestCOP0_SideEffects(t *testing.T) {
	hooks := new(testHooks)
	ctx := newTestContext(t)
	ctx.Hooks = hooks
	ctx.Cycle = 100
	ctx.WriteCOP0(mips.CP0_COUNT, 500)
	assert.Equal(t, [2]uint32{100, 500}, hooks.count)
	assert.Equal(t, uint64(500), ctx.ReadCOP0(mips.CP0_COUNT))
	ctx.SetIP(CR_IP7, true)
	ctx.WriteCOP0(mips.CP0_COMPARE, 1000)
	assert.Equal(t, uint32(1000), hooks.compare)
	assert.Zero(t, ctx.COP0[mips.CP0_CAUSE]&CR_IP7)
	old := ctx.Status()
	ctx.WriteCOP0(mips.CP0_STATUS, uint64(old&^SR_FR))
	assert.Equal(t, [2]uint32{old, old &^ SR_FR}, hooks.status)
	ctx.WriteCOP0(mips.CP0_CAUSE, 0xffffffff)
	assert.Equal(t, uint64(0x300), ctx.COP0[mips.CP0_CAUSE]&0x3ff)
	assert.True(t, ctx.ReadCOP0(mips.CP0_RANDOM) < NumTLB)
}
