package serializer

import (
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var errInvalidJSON = errors.New("jsoniter: invalid or incomplete json document")

// NewJSONIterSerializer creates a new serializer using json-iterator in its
// standard library compatible configuration
func NewJSONIterSerializer() IRPCSerializer {
	return &jsonIterSerializerImpl{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

// jsonIterSerializerImpl implements the IRPCSerializer interface using json-iterator
type jsonIterSerializerImpl struct {
	api jsoniter.API
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonIterSerializerImpl) Serialize(v any) ([]byte, error) {
	return j.api.Marshal(v)
}

func (j jsonIterSerializerImpl) Deserialize(b []byte, v any) error {
	// Unmarshal alone accepts truncated input that ends in EOF
	if !j.api.Valid(b) {
		return errInvalidJSON
	}
	return j.api.Unmarshal(b, v)
}

func (j jsonIterSerializerImpl) Name() string {
	return "jsoniter"
}
