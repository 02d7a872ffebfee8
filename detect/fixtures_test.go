package detect

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"filetally/source"
)

// Test fixtures assembled byte by byte. Only the fields the probes read are
// meaningful; everything else is zero or a plausible filler.

type elfSegment struct {
	typ     uint32
	payload []byte
}

func elfOrderByte(bo binary.ByteOrder) byte {
	switch bo {
	case binary.LittleEndian:
		return elfData2LSB
	case binary.BigEndian:
		return elfData2MSB
	}
	return 0
}

// buildELF lays out a header, the program header table right after it and
// every segment payload after the table.
func buildELF(is64 bool, bo binary.ByteOrder, machine uint16, segs ...elfSegment) []byte {
	layout := elf32Layout
	class := byte(elfClass32)
	if is64 {
		layout = elf64Layout
		class = elfClass64
	}
	phoff := layout.ehdrSize
	payloadAt := phoff + len(segs)*layout.phdrSize

	size := payloadAt
	for _, s := range segs {
		size += len(s.payload)
	}
	buf := make([]byte, size)
	copy(buf, elfMagic)
	buf[elfIdentClass] = class
	buf[elfIdentData] = elfOrderByte(bo)
	buf[6] = 1

	putWord := func(at int, v uint64) {
		if is64 {
			bo.PutUint64(buf[at:], v)
		} else {
			bo.PutUint32(buf[at:], uint32(v))
		}
	}

	bo.PutUint16(buf[16:], 2)
	bo.PutUint16(buf[18:], machine)
	// e_entry with high bytes set keeps the header from reading as UTF-8.
	if is64 {
		bo.PutUint64(buf[24:], 0xffffffff80001000)
	} else {
		bo.PutUint32(buf[24:], 0xff801000)
	}
	putWord(layout.phoffAt, uint64(phoff))
	bo.PutUint16(buf[layout.phentsizeAt:], uint16(layout.phdrSize))
	bo.PutUint16(buf[layout.phnumAt:], uint16(len(segs)))

	at := payloadAt
	for i, s := range segs {
		ph := phoff + i*layout.phdrSize
		bo.PutUint32(buf[ph:], s.typ)
		putWord(ph+layout.pOffsetAt, uint64(at))
		putWord(ph+layout.pFileszAt, uint64(len(s.payload)))
		copy(buf[at:], s.payload)
		at += len(s.payload)
	}
	return buf
}

func interpSegment(path string) elfSegment {
	return elfSegment{typ: elfPTInterp, payload: []byte(path)}
}

func loadSegment(n int) elfSegment {
	return elfSegment{typ: 1, payload: bytes.Repeat([]byte{0xcc}, n)}
}

const (
	cpuX86_64  = 0x01000007
	cpuARM64   = 0x0100000c
	cpuPowerPC = 18
)

// buildMachO writes a thin image with one filler load command and, when
// signed, an LC_CODE_SIGNATURE command.
func buildMachO(is64 bool, bo binary.ByteOrder, cputype uint32, signed bool) []byte {
	hdrSize := machHeaderSize
	magic := uint32(0xfeedface)
	if is64 {
		hdrSize = machHeader64Size
		magic = 0xfeedfacf
	}
	ncmds := uint32(1)
	cmdsTotal := 24
	if signed {
		ncmds++
		cmdsTotal += linkeditDataSize
	}

	buf := make([]byte, hdrSize+cmdsTotal)
	bo.PutUint32(buf[0:], magic)
	bo.PutUint32(buf[4:], cputype)
	bo.PutUint32(buf[12:], 2)
	bo.PutUint32(buf[16:], ncmds)
	bo.PutUint32(buf[20:], uint32(cmdsTotal))

	at := hdrSize
	bo.PutUint32(buf[at:], 0x2)
	bo.PutUint32(buf[at+4:], 24)
	at += 24
	if signed {
		bo.PutUint32(buf[at:], lcCodeSignature)
		bo.PutUint32(buf[at+4:], linkeditDataSize)
		bo.PutUint32(buf[at+8:], 0x4000)
		bo.PutUint32(buf[at+12:], 0x200)
	}
	return buf
}

// buildFat packs members into a big-endian universal container, each member
// aligned to 16 bytes.
func buildFat(members ...[]byte) []byte {
	const align = 16
	at := fatHeaderSize + len(members)*fatArchSize
	offsets := make([]int, len(members))
	for i, m := range members {
		at = (at + align - 1) &^ (align - 1)
		offsets[i] = at
		at += len(m)
	}

	buf := make([]byte, at)
	binary.BigEndian.PutUint32(buf[0:], 0xcafebabe)
	binary.BigEndian.PutUint32(buf[4:], uint32(len(members)))
	for i, m := range members {
		arch := fatHeaderSize + i*fatArchSize
		binary.BigEndian.PutUint32(buf[arch+8:], uint32(offsets[i]))
		binary.BigEndian.PutUint32(buf[arch+12:], uint32(len(m)))
		binary.BigEndian.PutUint32(buf[arch+16:], 4)
		copy(buf[offsets[i]:], m)
	}
	return buf
}

const (
	machineI386  = 0x014c
	machineAMD64 = 0x8664
	peLfanew     = 0x80
)

func buildPE(is64 bool, machine uint16, managed bool) []byte {
	le := binary.LittleEndian
	size := peLfanew + ntHeaders32Size
	if is64 {
		size = peLfanew + ntHeaders64Size
	}
	buf := make([]byte, size)
	le.PutUint16(buf[0:], dosMagic)
	le.PutUint32(buf[dosLfanewAt:], peLfanew)

	nt := buf[peLfanew:]
	le.PutUint32(nt[0:], ntSignature)
	le.PutUint16(nt[ntMachineAt:], machine)
	comAt := comDescriptor32At
	if is64 {
		le.PutUint16(nt[ntOptMagicAt:], optHdr64Magic)
		comAt = comDescriptor64At
	} else {
		le.PutUint16(nt[ntOptMagicAt:], 0x10b)
	}
	if managed {
		le.PutUint32(nt[comAt:], 0x2008)
		le.PutUint32(nt[comAt+4:], 0x48)
	}
	return buf
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.bin")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func openTemp(t *testing.T, path string) (*source.Source, func()) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	return source.New(f), func() { f.Close() }
}
