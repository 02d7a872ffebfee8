package detect

import (
	"bytes"
	"encoding/binary"
	"math/bits"

	"filetally/source"
)

const (
	elfIdentClass = 4
	elfIdentData  = 5

	elfClass32 = 1
	elfClass64 = 2

	elfData2LSB = 1
	elfData2MSB = 2

	elfPTInterp = 3

	// Upper bound for a PT_INTERP payload. Larger declared sizes are treated
	// as corrupt rather than read.
	maxInterpreterLen = 4098
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// elfLayout captures the parts of the 32- and 64-bit header shapes the probe
// reads. Offsets are relative to the start of the respective structure.
type elfLayout struct {
	is64     bool
	ehdrSize int
	phdrSize int

	phoffAt     int
	phentsizeAt int
	phnumAt     int

	pOffsetAt int
	pFileszAt int
}

var (
	elf32Layout = elfLayout{
		is64:        false,
		ehdrSize:    52,
		phdrSize:    32,
		phoffAt:     28,
		phentsizeAt: 42,
		phnumAt:     44,
		pOffsetAt:   4,
		pFileszAt:   16,
	}
	elf64Layout = elfLayout{
		is64:        true,
		ehdrSize:    64,
		phdrSize:    56,
		phoffAt:     32,
		phentsizeAt: 54,
		phnumAt:     56,
		pOffsetAt:   8,
		pFileszAt:   32,
	}
)

func (l elfLayout) word(bo binary.ByteOrder, b []byte) uint64 {
	if l.is64 {
		return bo.Uint64(b)
	}
	return uint64(bo.Uint32(b))
}

// ProbeELF identifies an ELF image and extracts its PT_INTERP path.
func ProbeELF(src *source.Source) (ELF, bool) {
	ident := make([]byte, elfIdentClass+1)
	if !src.ReadExact(0, ident) || !bytes.Equal(ident[:4], elfMagic) {
		return ELF{}, false
	}
	switch ident[elfIdentClass] {
	case elfClass32:
		return probeELF(src, elf32Layout)
	case elfClass64:
		return probeELF(src, elf64Layout)
	}
	return ELF{}, false
}

func probeELF(src *source.Source, layout elfLayout) (ELF, bool) {
	hdr := make([]byte, layout.ehdrSize)
	if !src.ReadExact(0, hdr) {
		return ELF{}, false
	}

	rec := ELF{Is64: layout.is64}
	var bo binary.ByteOrder = binary.NativeEndian
	switch hdr[elfIdentData] {
	case elfData2LSB:
		rec.Endian = EndianLittle
		bo = binary.LittleEndian
	case elfData2MSB:
		rec.Endian = EndianBig
		bo = binary.BigEndian
	}

	rec.CPUType = elfMachineName(bo.Uint16(hdr[18:20]))
	phoff := layout.word(bo, hdr[layout.phoffAt:])
	phentsize := uint64(bo.Uint16(hdr[layout.phentsizeAt:]))
	phnum := int(bo.Uint16(hdr[layout.phnumAt:]))

	phdr := make([]byte, layout.phdrSize)
	for i := 0; i < phnum; i++ {
		hi, lo := bits.Mul64(uint64(i), phentsize)
		at, carry := bits.Add64(phoff, lo, 0)
		if hi != 0 || carry != 0 {
			return ELF{}, false
		}
		if !src.ReadExact(at, phdr) {
			return ELF{}, false
		}
		if bo.Uint32(phdr[0:4]) != elfPTInterp {
			continue
		}

		size := layout.word(bo, phdr[layout.pFileszAt:])
		offset := layout.word(bo, phdr[layout.pOffsetAt:])
		if size > maxInterpreterLen {
			return ELF{}, false
		}
		interp := make([]byte, size)
		if !src.ReadExact(offset, interp) {
			return ELF{}, false
		}
		rec.Interpreter = string(bytes.TrimRight(interp, " \t\n\v\f\r\x00"))
	}
	return rec, true
}
