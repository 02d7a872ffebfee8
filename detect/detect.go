// Package detect identifies the structural type of a byte stream.
package detect

import "filetally/source"

type Option func(*Detector)

// WithLenientText admits ESC as an ASCII control character in the text and
// XML probes.
func WithLenientText(lenient bool) Option {
	return func(d *Detector) {
		d.text.AllowEscape = lenient
	}
}

// Detector runs the probes in order ELF, Mach-O, PE, XML, text. It is safe
// for concurrent use.
type Detector struct {
	text TextClassifier
}

func New(opts ...Option) *Detector {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns exactly one record for src; Unknown when no probe matches.
func (d *Detector) Detect(src *source.Source) Record {
	if r, ok := ProbeELF(src.Sub(0)); ok {
		return r
	}
	if r, ok := ProbeMachO(src.Sub(0)); ok {
		return r
	}
	if r, ok := ProbePE(src.Sub(0)); ok {
		return r
	}
	if r, ok := probeXML(src.Sub(0), d.text); ok {
		return r
	}
	if r, ok := d.text.Classify(src.Sub(0)); ok {
		return r
	}
	return Unknown{}
}

var defaultDetector = New()

// Detect runs the default Detector.
func Detect(src *source.Source) Record {
	return defaultDetector.Detect(src)
}
