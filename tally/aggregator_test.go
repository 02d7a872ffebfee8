package tally

import (
	"sync"
	"testing"

	"filetally/detect"
)

func TestAggregatorCountsByShape(t *testing.T) {
	agg := NewAggregator()
	elf := detect.ELF{Endian: detect.EndianLittle, Is64: true, CPUType: "X86_64", Interpreter: "/lib/ld.so"}
	txt := detect.Text{Encoding: detect.EncodingASCII}

	const n, m = 7, 3
	for i := 0; i < n; i++ {
		// A fresh value each time: equality is structural.
		agg.Add(detect.ELF{Endian: elf.Endian, Is64: elf.Is64, CPUType: elf.CPUType, Interpreter: elf.Interpreter})
	}
	for i := 0; i < m; i++ {
		agg.Add(txt)
	}

	got := agg.Summarize()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(got), got)
	}
	if got[0].Count != n || !detect.Equal(got[0].Record, elf) {
		t.Fatalf("first entry %+v", got[0])
	}
	if got[1].Count != m || !detect.Equal(got[1].Record, txt) {
		t.Fatalf("second entry %+v", got[1])
	}
	if agg.Total() != n+m {
		t.Fatalf("total %d", agg.Total())
	}
}

func TestAggregatorTieBreakByKind(t *testing.T) {
	agg := NewAggregator()
	// Added in reverse kind order.
	agg.Add(detect.XML{Encoding: detect.EncodingUTF8})
	agg.Add(detect.Text{Encoding: detect.EncodingUTF8})
	agg.Add(detect.PE{Endian: detect.EndianLittle, CPUType: "I386"})
	agg.Add(detect.MachO{Thin: detect.MachOImage{Endian: detect.EndianLittle, CPUType: "X86"}})
	agg.Add(detect.ELF{Endian: detect.EndianBig, CPUType: "PPC"})
	agg.Add(detect.Unknown{})

	got := agg.Summarize()
	want := []detect.Kind{detect.KindUnknown, detect.KindELF, detect.KindMachO, detect.KindPE, detect.KindText, detect.KindXML}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, k := range want {
		if got[i].Record.Kind() != k {
			t.Fatalf("position %d: got %v, want kind %v", i, got[i].Record, k)
		}
	}
}

func TestAggregatorDeterministicWithinKind(t *testing.T) {
	build := func(order []string) []Entry {
		agg := NewAggregator()
		for _, cpu := range order {
			agg.Add(detect.PE{Endian: detect.EndianLittle, CPUType: cpu})
		}
		return agg.Summarize()
	}
	a := build([]string{"AMD64", "I386", "ARM64"})
	b := build([]string{"ARM64", "AMD64", "I386"})
	for i := range a {
		if !detect.Equal(a[i].Record, b[i].Record) {
			t.Fatalf("order differs at %d: %v vs %v", i, a[i].Record, b[i].Record)
		}
	}
}

func TestAggregatorNilCountsAsUnknown(t *testing.T) {
	agg := NewAggregator()
	agg.Add(nil)
	agg.Add(detect.Unknown{})
	got := agg.Summarize()
	if len(got) != 1 || got[0].Count != 2 || got[0].Record.Kind() != detect.KindUnknown {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestAggregatorConcurrentAdd(t *testing.T) {
	agg := NewAggregator()
	records := []detect.Record{
		detect.Text{Encoding: detect.EncodingASCII},
		detect.Text{Encoding: detect.EncodingUTF8, WithBOM: true},
		detect.MachO{Fat: []detect.MachOImage{{Endian: detect.EndianLittle, Is64: true, CPUType: "X86_64"}}},
		detect.Unknown{},
	}

	const workers, perWorker = 8, 500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				agg.Add(records[(w+i)%len(records)])
				if i%100 == 0 {
					agg.Summarize()
				}
			}
		}(w)
	}
	wg.Wait()

	var total int64
	for _, e := range agg.Summarize() {
		total += e.Count
	}
	if total != workers*perWorker {
		t.Fatalf("lost updates: %d", total)
	}
	if got := len(agg.Summarize()); got != len(records) {
		t.Fatalf("expected %d shapes, got %d", len(records), got)
	}
}

func TestLabelsSnapshot(t *testing.T) {
	l := NewLabels()
	for _, s := range []string{"image/png", "application/zip", "image/png", "application/gzip", "application/zip", "image/png"} {
		l.Add(s)
	}
	got := l.Snapshot()
	want := []LabelCount{{"image/png", 3}, {"application/zip", 2}, {"application/gzip", 1}}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func BenchmarkAggregatorAdd(b *testing.B) {
	agg := NewAggregator()
	rec := detect.ELF{Endian: detect.EndianLittle, Is64: true, CPUType: "X86_64", Interpreter: "/lib64/ld-linux-x86-64.so.2"}
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			agg.Add(rec)
		}
	})
}
