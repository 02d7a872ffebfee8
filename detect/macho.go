package detect

import (
	"encoding/binary"

	"filetally/source"
)

// Mach-O magics as they appear when the first four bytes are decoded
// little-endian.
const (
	machoMagic32LE = 0xfeedface
	machoMagic64LE = 0xfeedfacf
	machoMagic32BE = 0xcefaedfe
	machoMagic64BE = 0xcffaedfe

	fatMagicBE = 0xbebafeca
	fatMagicLE = 0xcafebabe
)

const (
	machHeaderSize   = 28
	machHeader64Size = 32
	loadCommandSize  = 8
	linkeditDataSize = 16
	fatHeaderSize    = 8
	fatArchSize      = 20

	lcCodeSignature = 0x1d
)

var machoCPUTypes = map[uint32]string{
	0xffffffff: "ANY",
	1:          "VAX",
	6:          "MC680x0",
	7:          "X86",
	0x01000007: "X86_64",
	10:         "MC98000",
	11:         "HPPA",
	12:         "ARM",
	0x0100000c: "ARM64",
	0x0200000c: "ARM64_32",
	13:         "MC88000",
	14:         "SPARC",
	15:         "I860",
	18:         "POWERPC",
	0x01000012: "POWERPC64",
}

// ProbeMachO identifies a universal container first and a thin image second.
func ProbeMachO(src *source.Source) (MachO, bool) {
	if fat, ok := probeFat(src); ok {
		return MachO{Fat: fat}, true
	}
	if img, ok := probeMachOImage(src); ok {
		return MachO{Thin: img}, true
	}
	return MachO{}, false
}

func probeMachOImage(src *source.Source) (MachOImage, bool) {
	img, _, ok := walkMachOImage(src)
	return img, ok
}

// walkMachOImage also returns the end of the furthest byte it read.
func walkMachOImage(src *source.Source) (MachOImage, uint64, bool) {
	var magic [4]byte
	if !src.ReadExact(0, magic[:]) {
		return MachOImage{}, 0, false
	}

	var (
		img     MachOImage
		bo      binary.ByteOrder
		hdrSize int
	)
	switch binary.LittleEndian.Uint32(magic[:]) {
	case machoMagic32LE:
		img.Endian, bo, hdrSize = EndianLittle, binary.LittleEndian, machHeaderSize
	case machoMagic64LE:
		img.Endian, bo, hdrSize = EndianLittle, binary.LittleEndian, machHeader64Size
		img.Is64 = true
	case machoMagic32BE:
		img.Endian, bo, hdrSize = EndianBig, binary.BigEndian, machHeaderSize
	case machoMagic64BE:
		img.Endian, bo, hdrSize = EndianBig, binary.BigEndian, machHeader64Size
		img.Is64 = true
	default:
		return MachOImage{}, 0, false
	}

	hdr := make([]byte, hdrSize)
	if !src.ReadExact(0, hdr) {
		return MachOImage{}, 0, false
	}
	img.CPUType = machoCPUTypes[bo.Uint32(hdr[4:8])]
	ncmds := bo.Uint32(hdr[16:20])

	// Every command takes at least loadCommandSize bytes.
	if limit, bounded := src.Bound(); bounded {
		if uint64(ncmds)*loadCommandSize > limit-uint64(hdrSize) {
			return MachOImage{}, 0, false
		}
	}

	var lc [linkeditDataSize]byte
	at := uint64(hdrSize)
	extent := at
	for i := uint32(0); i < ncmds; i++ {
		if !src.ReadExact(at, lc[:loadCommandSize]) {
			return MachOImage{}, 0, false
		}
		extent = max(extent, at+loadCommandSize)
		cmd := bo.Uint32(lc[0:4])
		cmdsize := bo.Uint32(lc[4:8])
		if cmdsize < loadCommandSize {
			return MachOImage{}, 0, false
		}
		if cmd == lcCodeSignature {
			// dataoff and datasize are not followed.
			if !src.ReadExact(at, lc[:]) {
				return MachOImage{}, 0, false
			}
			extent = max(extent, at+linkeditDataSize)
			img.Signed = true
		}
		next := at + uint64(cmdsize)
		if next < at {
			return MachOImage{}, 0, false
		}
		at = next
	}
	return img, extent, true
}

func probeFat(src *source.Source) ([]MachOImage, bool) {
	var hdr [fatHeaderSize]byte
	if !src.ReadExact(0, hdr[:]) {
		return nil, false
	}
	var bo binary.ByteOrder
	switch binary.LittleEndian.Uint32(hdr[0:4]) {
	case fatMagicBE:
		bo = binary.BigEndian
	case fatMagicLE:
		bo = binary.LittleEndian
	default:
		return nil, false
	}

	nfat := bo.Uint32(hdr[4:8])
	if nfat == 0 {
		return nil, false
	}

	type fatArch struct{ offset, size uint64 }
	var (
		archs []fatArch
		arch  [fatArchSize]byte
	)
	widest := map[uint64]uint64{}
	at := uint64(fatHeaderSize)
	for i := uint32(0); i < nfat; i++ {
		if !src.ReadExact(at, arch[:]) {
			return nil, false
		}
		a := fatArch{offset: uint64(bo.Uint32(arch[8:12])), size: uint64(bo.Uint32(arch[12:16]))}
		archs = append(archs, a)
		widest[a.offset] = max(widest[a.offset], a.size)
		at += fatArchSize
	}

	// Each distinct member offset is walked once, through its widest window.
	// A narrower window at the same offset yields the same image when it
	// covers every byte the walk read, and fails otherwise.
	type walked struct {
		img    MachOImage
		extent uint64
		ok     bool
	}
	cache := make(map[uint64]walked, len(widest))
	members := make([]MachOImage, 0, len(archs))
	for _, a := range archs {
		w, seen := cache[a.offset]
		if !seen {
			w.img, w.extent, w.ok = walkMachOImage(src.Window(a.offset, widest[a.offset]))
			cache[a.offset] = w
		}
		if !w.ok || w.extent > a.size {
			return nil, false
		}
		members = append(members, w.img)
	}
	return members, true
}
