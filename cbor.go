// CBOR encoding for PageOp diffs, using Core Deterministic Encoding
// (RFC 8949) so that two equal diffs always serialize to the same bytes.
//
// Copyright © 2021 Montgomery Edwards⁴⁴⁸
// This file is provided under MIT License.
package hashdag

import (
	"io"

	"github.com/fxamacker/cbor/v2" // imports as cbor
)

const maxArrayElements = 2147483647
const maxMapPairs = 2147483647

var (
	encOptions = cbor.EncOptions{
		InfConvert:    cbor.InfConvertFloat16,
		IndefLength:   cbor.IndefLengthForbidden,
		NaNConvert:    cbor.NaNConvert7e00,
		ShortestFloat: cbor.ShortestFloat16,
		Sort:          cbor.SortCoreDeterministic,
		TagsMd:        cbor.TagsAllowed,
		Time:          cbor.TimeUnix,
	}

	decOptions = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		IndefLength:       cbor.IndefLengthForbidden,
		MaxArrayElements:  maxArrayElements,
		MaxMapPairs:       maxMapPairs,
		TagsMd:            cbor.TagsAllowed,
		TimeTag:           cbor.DecTagIgnored,
	}

	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = encOptions.EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = decOptions.DecMode(); err != nil {
		panic(err)
	}
}

// EncodePageOps serializes a Flush diff to deterministic CBOR bytes, for
// backends that persist or transmit diffs rather than applying them
// in-process (e.g. FileBackend).
func EncodePageOps(ops []PageOp) ([]byte, error) {
	b, err := encMode.Marshal(ops)
	if err != nil {
		return nil, newCodecError(err)
	}
	return b, nil
}

// DecodePageOps deserializes a diff previously produced by EncodePageOps.
func DecodePageOps(data []byte) ([]PageOp, error) {
	if data == nil {
		return nil, nil
	}
	var ops []PageOp
	if err := decMode.Unmarshal(data, &ops); err != nil {
		return nil, newCodecError(err)
	}
	return ops, nil
}

// newCBOREncoder creates a CBOR encoder using the package's deterministic
// encoding options, for backends that stream diffs rather than buffering
// a full byte slice.
func newCBOREncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// newCBORDecoder creates a CBOR decoder using the package's decoding
// options.
func newCBORDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
