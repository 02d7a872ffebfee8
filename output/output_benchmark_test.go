package output

import (
	"io"
	"testing"

	"filetally/detect"
	"filetally/tally"
)

func BenchmarkMarshalReport(b *testing.B) {
	entries := make([]tally.Entry, 0, 64)
	for i := 0; i < 64; i++ {
		entries = append(entries, tally.Entry{
			Record: detect.MachO{Fat: []detect.MachOImage{
				{Endian: detect.EndianLittle, Is64: true, CPUType: "X86_64", Signed: i%2 == 0},
				{Endian: detect.EndianLittle, Is64: true, CPUType: "ARM64"},
			}},
			Count: int64(i + 1),
		})
	}
	doc := report{SchemaVersion: SchemaVersion, Metrics: &Metrics{FilesScanned: 1 << 20}}
	for _, e := range entries {
		doc.Results = append(doc.Results, newResultRow(e))
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := jsonMarshalIndent(doc, "", "  "); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWriteText(b *testing.B) {
	entries := []tally.Entry{
		{Record: detect.PE{Endian: detect.EndianLittle, Is64: true, CPUType: "AMD64", Managed: true}, Count: 10},
		{Record: detect.XML{Encoding: detect.EncodingASCII}, Count: 5},
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := writeText(io.Discard, entries, nil); err != nil {
			b.Fatal(err)
		}
	}
}
