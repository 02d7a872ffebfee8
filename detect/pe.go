package detect

import (
	"encoding/binary"

	"filetally/source"
)

const (
	dosHeaderSize = 64
	dosMagic      = 0x5a4d
	dosLfanewAt   = 60

	ntHeaders32Size = 248
	ntHeaders64Size = 264
	ntSignature     = 0x00004550

	ntMachineAt   = 4
	ntOptMagicAt  = 24
	optHdr64Magic = 0x20b

	// VirtualAddress of IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR inside each
	// NT headers shape.
	comDescriptor32At = 232
	comDescriptor64At = 248
)

var peMachines = map[uint16]string{
	0x0000: "UNKNOWN",
	0x0001: "TARGET_HOST",
	0x014c: "I386",
	0x0162: "R3000",
	0x0166: "R4000",
	0x0168: "R10000",
	0x0169: "WCEMIPSV2",
	0x0184: "ALPHA",
	0x01a2: "SH3",
	0x01a3: "SH3DSP",
	0x01a4: "SH3E",
	0x01a6: "SH4",
	0x01a8: "SH5",
	0x01c0: "ARM",
	0x01c2: "THUMB",
	0x01c4: "ARMNT",
	0x01d3: "AM33",
	0x01f0: "POWERPC",
	0x01f1: "POWERPCFP",
	0x0200: "IA64",
	0x0266: "MIPS16",
	0x0284: "ALPHA64",
	0x0366: "MIPSFPU",
	0x0466: "MIPSFPU16",
	0x0520: "TRICORE",
	0x0cef: "CEF",
	0x0ebc: "EBC",
	0x5032: "RISCV32",
	0x5064: "RISCV64",
	0x6264: "LOONGARCH64",
	0x8664: "AMD64",
	0x9041: "M32R",
	0xa641: "ARM64EC",
	0xaa64: "ARM64",
	0xc0ee: "CEE",
}

// ProbePE identifies a PE image. All PE headers are little-endian.
func ProbePE(src *source.Source) (PE, bool) {
	le := binary.LittleEndian

	dos := make([]byte, dosHeaderSize)
	if !src.ReadExact(0, dos) || le.Uint16(dos[0:2]) != dosMagic {
		return PE{}, false
	}
	lfanew := int32(le.Uint32(dos[dosLfanewAt:]))
	if lfanew < 0 {
		return PE{}, false
	}

	nt := make([]byte, ntHeaders64Size)
	if !src.ReadExact(uint64(lfanew), nt[:ntHeaders32Size]) {
		return PE{}, false
	}
	if le.Uint32(nt[0:4]) != ntSignature {
		return PE{}, false
	}

	rec := PE{Endian: EndianLittle}
	comAt := comDescriptor32At
	if le.Uint16(nt[ntOptMagicAt:]) == optHdr64Magic {
		if !src.ReadExact(uint64(lfanew), nt) {
			return PE{}, false
		}
		rec.Is64 = true
		comAt = comDescriptor64At
	}
	rec.CPUType = peMachines[le.Uint16(nt[ntMachineAt:])]
	rec.Managed = le.Uint32(nt[comAt:]) != 0
	return rec, true
}
