// Package wire encodes and decodes the compact binary payloads exchanged
// with the prediction service. It uses the protobuf wire format directly
// through protowire with hand-assigned field numbers; no generated code.
//
// Field numbers are a wire contract and must never be reused or renumbered.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Query field numbers.
const (
	queryFormNum    = 1 // repeated message
	queryVersionNum = 2 // string

	formSignatureNum = 1 // fixed64
	formFieldNum     = 2 // repeated message

	fieldSignatureNum = 1 // fixed32
	fieldNameNum      = 2 // string
	fieldControlNum   = 3 // string
	fieldLabelNum     = 4 // string
)

// QueryResponse field numbers.
const (
	responsePredictionNum = 1 // repeated message
	predictionTypeNum     = 1 // varint
)

// Upload field numbers.
const (
	uploadFormSignatureNum  = 1 // fixed64
	uploadAutofilledNum     = 2 // varint bool
	uploadLoginSignatureNum = 3 // fixed64
	uploadObservedNum       = 4 // varint bool
	uploadVoteNum           = 5 // repeated message
	uploadVersionNum        = 6 // string

	voteSignatureNum = 1 // fixed32
	voteTypeNum      = 2 // repeated varint
)

// QueryField describes one non-skipped field of a queried form. Name,
// Control and Label are optional non-identifying diagnostic metadata; the
// field's value is never transmitted.
type QueryField struct {
	Signature uint32
	Name      string
	Control   string
	Label     string
}

// QueryForm describes one form of a batched query.
type QueryForm struct {
	Signature uint64
	Fields    []QueryField
}

// Query is the request payload for a crowdsourced type lookup.
type Query struct {
	Forms         []QueryForm
	ClientVersion string
}

// Prediction is one per-field response entry. Entries align positionally to
// the non-skipped fields of the request in form order; a response that ends
// early simply leaves trailing fields unset.
type Prediction struct {
	Type int32
}

// QueryResponse is the decoded response payload.
type QueryResponse struct {
	Predictions []Prediction
}

// Vote carries the possible types observed for one field at submission.
type Vote struct {
	FieldSignature uint32
	Types          []int32
}

// Upload is the submission-time vote payload.
type Upload struct {
	FormSignature      uint64
	WasAutofilled      bool
	LoginSignature     uint64
	ObservedSubmission bool
	Votes              []Vote
	ClientVersion      string
}

// EncodeQuery serializes a query request.
func EncodeQuery(q Query) []byte {
	var out []byte
	for _, f := range q.Forms {
		out = protowire.AppendTag(out, queryFormNum, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeQueryForm(f))
	}
	if q.ClientVersion != "" {
		out = protowire.AppendTag(out, queryVersionNum, protowire.BytesType)
		out = protowire.AppendString(out, q.ClientVersion)
	}
	return out
}

func encodeQueryForm(f QueryForm) []byte {
	var out []byte
	out = protowire.AppendTag(out, formSignatureNum, protowire.Fixed64Type)
	out = protowire.AppendFixed64(out, f.Signature)
	for _, fd := range f.Fields {
		out = protowire.AppendTag(out, formFieldNum, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeQueryField(fd))
	}
	return out
}

func encodeQueryField(f QueryField) []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldSignatureNum, protowire.Fixed32Type)
	out = protowire.AppendFixed32(out, f.Signature)
	if f.Name != "" {
		out = protowire.AppendTag(out, fieldNameNum, protowire.BytesType)
		out = protowire.AppendString(out, f.Name)
	}
	if f.Control != "" {
		out = protowire.AppendTag(out, fieldControlNum, protowire.BytesType)
		out = protowire.AppendString(out, f.Control)
	}
	if f.Label != "" {
		out = protowire.AppendTag(out, fieldLabelNum, protowire.BytesType)
		out = protowire.AppendString(out, f.Label)
	}
	return out
}

// DecodeQuery parses a query request. Used by tests and stub servers.
func DecodeQuery(data []byte) (Query, error) {
	var q Query
	err := eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case queryFormNum:
			f, err := decodeQueryForm(payload)
			if err != nil {
				return err
			}
			q.Forms = append(q.Forms, f)
		case queryVersionNum:
			q.ClientVersion = string(payload)
		}
		return nil
	})
	return q, err
}

func decodeQueryForm(data []byte) (QueryForm, error) {
	var f QueryForm
	err := eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case formSignatureNum:
			f.Signature = fixed64(payload)
		case formFieldNum:
			fd, err := decodeQueryField(payload)
			if err != nil {
				return err
			}
			f.Fields = append(f.Fields, fd)
		}
		return nil
	})
	return f, err
}

func decodeQueryField(data []byte) (QueryField, error) {
	var f QueryField
	err := eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case fieldSignatureNum:
			f.Signature = fixed32(payload)
		case fieldNameNum:
			f.Name = string(payload)
		case fieldControlNum:
			f.Control = string(payload)
		case fieldLabelNum:
			f.Label = string(payload)
		}
		return nil
	})
	return f, err
}

// EncodeQueryResponse serializes a response. Used by tests and stub servers.
func EncodeQueryResponse(r QueryResponse) []byte {
	var out []byte
	for _, p := range r.Predictions {
		var msg []byte
		msg = protowire.AppendTag(msg, predictionTypeNum, protowire.VarintType)
		msg = protowire.AppendVarint(msg, uint64(p.Type))
		out = protowire.AppendTag(out, responsePredictionNum, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}
	return out
}

// DecodeQueryResponse parses a response payload. A malformed payload returns
// an error; callers treat that as no response at all.
func DecodeQueryResponse(data []byte) (QueryResponse, error) {
	var r QueryResponse
	err := eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		if num != responsePredictionNum {
			return nil
		}
		var p Prediction
		err := eachField(payload, func(num protowire.Number, typ protowire.Type, inner []byte) error {
			if num == predictionTypeNum {
				v, n := protowire.ConsumeVarint(inner)
				if n < 0 {
					return fmt.Errorf("wire: bad prediction type varint")
				}
				p.Type = int32(v)
			}
			return nil
		})
		if err != nil {
			return err
		}
		r.Predictions = append(r.Predictions, p)
		return nil
	})
	return r, err
}

// EncodeUpload serializes a vote upload.
func EncodeUpload(u Upload) []byte {
	var out []byte
	out = protowire.AppendTag(out, uploadFormSignatureNum, protowire.Fixed64Type)
	out = protowire.AppendFixed64(out, u.FormSignature)
	out = protowire.AppendTag(out, uploadAutofilledNum, protowire.VarintType)
	out = protowire.AppendVarint(out, boolBit(u.WasAutofilled))
	if u.LoginSignature != 0 {
		out = protowire.AppendTag(out, uploadLoginSignatureNum, protowire.Fixed64Type)
		out = protowire.AppendFixed64(out, u.LoginSignature)
	}
	out = protowire.AppendTag(out, uploadObservedNum, protowire.VarintType)
	out = protowire.AppendVarint(out, boolBit(u.ObservedSubmission))
	for _, v := range u.Votes {
		var msg []byte
		msg = protowire.AppendTag(msg, voteSignatureNum, protowire.Fixed32Type)
		msg = protowire.AppendFixed32(msg, v.FieldSignature)
		for _, t := range v.Types {
			msg = protowire.AppendTag(msg, voteTypeNum, protowire.VarintType)
			msg = protowire.AppendVarint(msg, uint64(t))
		}
		out = protowire.AppendTag(out, uploadVoteNum, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}
	if u.ClientVersion != "" {
		out = protowire.AppendTag(out, uploadVersionNum, protowire.BytesType)
		out = protowire.AppendString(out, u.ClientVersion)
	}
	return out
}

// DecodeUpload parses a vote upload. Used by tests and stub servers.
func DecodeUpload(data []byte) (Upload, error) {
	var u Upload
	err := eachField(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case uploadFormSignatureNum:
			u.FormSignature = fixed64(payload)
		case uploadAutofilledNum:
			u.WasAutofilled = varintBool(payload)
		case uploadLoginSignatureNum:
			u.LoginSignature = fixed64(payload)
		case uploadObservedNum:
			u.ObservedSubmission = varintBool(payload)
		case uploadVoteNum:
			var v Vote
			err := eachField(payload, func(num protowire.Number, typ protowire.Type, inner []byte) error {
				switch num {
				case voteSignatureNum:
					v.FieldSignature = fixed32(inner)
				case voteTypeNum:
					val, n := protowire.ConsumeVarint(inner)
					if n < 0 {
						return fmt.Errorf("wire: bad vote type varint")
					}
					v.Types = append(v.Types, int32(val))
				}
				return nil
			})
			if err != nil {
				return err
			}
			u.Votes = append(u.Votes, v)
		case uploadVersionNum:
			u.ClientVersion = string(payload)
		}
		return nil
	})
	return u, err
}

// eachField walks a wire-format message, handing each field's raw payload to
// fn. Scalar payloads are re-encoded slices positioned at the value; bytes
// payloads are the contained bytes.
func eachField(data []byte, fn func(num protowire.Number, typ protowire.Type, payload []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("wire: bad tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		var payload []byte
		switch typ {
		case protowire.VarintType:
			_, n = protowire.ConsumeVarint(data)
		case protowire.Fixed32Type:
			_, n = protowire.ConsumeFixed32(data)
		case protowire.Fixed64Type:
			_, n = protowire.ConsumeFixed64(data)
		case protowire.BytesType:
			payload, n = protowire.ConsumeBytes(data)
		default:
			return fmt.Errorf("wire: unsupported wire type %d for field %d", typ, num)
		}
		if n < 0 {
			return fmt.Errorf("wire: truncated field %d: %v", num, protowire.ParseError(n))
		}
		if payload == nil {
			payload = data[:n]
		}
		if err := fn(num, typ, payload); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func fixed64(payload []byte) uint64 {
	v, n := protowire.ConsumeFixed64(payload)
	if n < 0 {
		return 0
	}
	return v
}

func fixed32(payload []byte) uint32 {
	v, n := protowire.ConsumeFixed32(payload)
	if n < 0 {
		return 0
	}
	return v
}

func varintBool(payload []byte) bool {
	v, n := protowire.ConsumeVarint(payload)
	return n >= 0 && v != 0
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
