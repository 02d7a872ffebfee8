package detect

import (
	"bytes"

	"filetally/source"
)

var xmlPrefix = []byte("<?xml")

// ProbeXML matches the "<?xml" prefix and reports the encoding of the bytes
// after it. A prefixed body that is not text is not XML.
func ProbeXML(src *source.Source) (XML, bool) {
	return probeXML(src, TextClassifier{})
}

func probeXML(src *source.Source, text TextClassifier) (XML, bool) {
	buf := make([]byte, len(xmlPrefix))
	if !src.ReadExact(0, buf) || !bytes.Equal(buf, xmlPrefix) {
		return XML{}, false
	}
	t, ok := text.Classify(src.Sub(uint64(len(xmlPrefix))))
	if !ok {
		return XML{}, false
	}
	return XML{Encoding: t.Encoding}, true
}
