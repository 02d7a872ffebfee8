package detect

import (
	"strconv"
	"strings"
)

// Kind order is the summary tie-break order.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindELF
	KindMachO
	KindPE
	KindText
	KindXML
)

func (k Kind) String() string {
	switch k {
	case KindELF:
		return "elf"
	case KindMachO:
		return "mach-o"
	case KindPE:
		return "pe"
	case KindText:
		return "text"
	case KindXML:
		return "xml"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Endian uint8

const (
	// Unrecognized header byte order; decoded in host order.
	EndianNative Endian = iota
	EndianLittle
	EndianBig
)

func (e Endian) String() string {
	switch e {
	case EndianLittle:
		return "little"
	case EndianBig:
		return "big"
	default:
		return "native"
	}
}

func (e Endian) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

type Encoding string

const (
	EncodingASCII         Encoding = "ASCII"
	EncodingUTF8          Encoding = "UTF-8"
	EncodingUTF32BE       Encoding = "UTF-32-BE"
	EncodingUTF32LE       Encoding = "UTF-32-LE"
	EncodingISO88591      Encoding = "ISO-8859-1"
	EncodingExtendedASCII Encoding = "extended-ASCII"
)

// Record is one of Unknown, ELF, MachO, PE, Text or XML.
type Record interface {
	Kind() Kind
	String() string
	appendKey(b []byte) []byte
}

// Key returns the structural key of r.
func Key(r Record) string {
	if r == nil {
		r = Unknown{}
	}
	b := make([]byte, 0, 64)
	b = append(b, byte('0'+r.Kind()), '|')
	return string(r.appendKey(b))
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Record) bool {
	return Key(a) == Key(b)
}

type Unknown struct{}

func (Unknown) Kind() Kind { return KindUnknown }
func (Unknown) String() string { return "Unknown" }
func (Unknown) appendKey(b []byte) []byte { return b }

type ELF struct {
	Endian      Endian `json:"endian"`
	Is64        bool   `json:"is64"`
	CPUType     string `json:"cpu_type"`
	Interpreter string `json:"interpreter,omitempty"`
}

func (ELF) Kind() Kind { return KindELF }

func (e ELF) String() string {
	return "elf = [" + e.Endian.String() + ", " + e.CPUType + ", " + bitness(e.Is64) + ", " + e.Interpreter + "]"
}

func (e ELF) appendKey(b []byte) []byte {
	b = append(b, byte('0'+e.Endian))
	b = strconv.AppendBool(b, e.Is64)
	b = strconv.AppendQuote(b, e.CPUType)
	return strconv.AppendQuote(b, e.Interpreter)
}

type MachOImage struct {
	Endian  Endian `json:"endian"`
	Is64    bool   `json:"is64"`
	CPUType string `json:"cpu_type"`
	Signed  bool   `json:"signed"`
}

func (m MachOImage) String() string {
	signed := "unsigned"
	if m.Signed {
		signed = "signed"
	}
	return "mach-o = [" + m.Endian.String() + ", " + m.CPUType + ", " + bitness(m.Is64) + ", " + signed + "]"
}

func (m MachOImage) appendKey(b []byte) []byte {
	b = append(b, byte('0'+m.Endian))
	b = strconv.AppendBool(b, m.Is64)
	b = strconv.AppendQuote(b, m.CPUType)
	return strconv.AppendBool(b, m.Signed)
}

// MachO is thin when Fat is nil.
type MachO struct {
	Thin MachOImage   `json:"thin,omitzero"`
	Fat  []MachOImage `json:"fat,omitempty"`
}

func (MachO) Kind() Kind { return KindMachO }

func (m MachO) IsFat() bool { return m.Fat != nil }

func (m MachO) String() string {
	if !m.IsFat() {
		return m.Thin.String()
	}
	parts := make([]string, len(m.Fat))
	for i, img := range m.Fat {
		parts[i] = img.String()
	}
	return "mach-o fat " + strconv.Itoa(len(m.Fat)) + " " + strings.Join(parts, ", ")
}

func (m MachO) appendKey(b []byte) []byte {
	if !m.IsFat() {
		b = append(b, 't')
		return m.Thin.appendKey(b)
	}
	b = append(b, 'f')
	b = strconv.AppendInt(b, int64(len(m.Fat)), 10)
	for _, img := range m.Fat {
		b = append(b, '/')
		b = img.appendKey(b)
	}
	return b
}

type PE struct {
	Endian  Endian `json:"endian"`
	Is64    bool   `json:"is64"`
	CPUType string `json:"cpu_type"`
	Managed bool   `json:"managed"`
}

func (PE) Kind() Kind { return KindPE }

func (p PE) String() string {
	managed := "native"
	if p.Managed {
		managed = "managed"
	}
	return "PE = [" + p.Endian.String() + ", " + p.CPUType + ", " + bitness(p.Is64) + ", " + managed + "]"
}

func (p PE) appendKey(b []byte) []byte {
	b = append(b, byte('0'+p.Endian))
	b = strconv.AppendBool(b, p.Is64)
	b = strconv.AppendQuote(b, p.CPUType)
	return strconv.AppendBool(b, p.Managed)
}

type Text struct {
	Encoding Encoding `json:"encoding"`
	WithBOM  bool     `json:"with_bom"`
}

func (Text) Kind() Kind { return KindText }

func (t Text) String() string {
	if t.WithBOM {
		return "txt = [" + string(t.Encoding) + " with bom]"
	}
	return "txt = [" + string(t.Encoding) + "]"
}

func (t Text) appendKey(b []byte) []byte {
	b = strconv.AppendQuote(b, string(t.Encoding))
	return strconv.AppendBool(b, t.WithBOM)
}

type XML struct {
	Encoding Encoding `json:"encoding"`
}

func (XML) Kind() Kind { return KindXML }

func (x XML) String() string {
	return "xml = [" + string(x.Encoding) + "]"
}

func (x XML) appendKey(b []byte) []byte {
	return strconv.AppendQuote(b, string(x.Encoding))
}

func bitness(is64 bool) string {
	if is64 {
		return "x64"
	}
	return "x32"
}
