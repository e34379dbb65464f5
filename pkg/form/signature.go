package form

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// FormSignature is the 64-bit stable hash that joins a classification
// request to its later response. It is reproducible from the same
// (host, form name, retained field-name sequence) tuple regardless of when
// it is computed.
type FormSignature uint64

// FieldSignature is the 32-bit stable hash of a field's name and control
// kind.
type FieldSignature uint32

func (s FormSignature) String() string  { return strconv.FormatUint(uint64(s), 10) }
func (s FieldSignature) String() string { return strconv.FormatUint(uint64(s), 10) }

// ComputeFieldSignature hashes a field's name and control kind. The label,
// value and every other attribute are deliberately excluded so the signature
// survives re-renders.
func ComputeFieldSignature(name string, kind ControlKind) FieldSignature {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte{'&'})
	h.Write([]byte(kind))
	return FieldSignature(h.Sum32())
}

// ComputeFormSignature hashes the target host, the form name, and the
// retained field names in observation order. Field order is significant.
func ComputeFormSignature(host, formName string, fieldNames []string) FormSignature {
	h := fnv.New64a()
	h.Write([]byte(host))
	h.Write([]byte{'&'})
	h.Write([]byte(formName))
	for _, name := range fieldNames {
		h.Write([]byte{'&'})
		h.Write([]byte(name))
	}
	return FormSignature(h.Sum64())
}

// CompositeSignature joins several form signatures into the exact-match key
// used by the prediction response cache. Order is significant; a batch that
// differs by a single form is a different key.
func CompositeSignature(signatures []FormSignature) string {
	parts := make([]string, len(signatures))
	for i, sig := range signatures {
		parts[i] = sig.String()
	}
	return strings.Join(parts, ",")
}
