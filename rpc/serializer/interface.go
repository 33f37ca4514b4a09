package serializer

// IRPCSerializer is the interface for the JSON codecs used on the wire.
// Request bodies are encoded with Serialize, response bodies and event
// payloads are decoded with Deserialize.
type IRPCSerializer interface {
	// Serialize encodes v as JSON
	Serialize(v any) ([]byte, error)
	// Deserialize decodes the JSON document b into v.
	// It returns an error if b is not a single valid JSON value.
	Deserialize(b []byte, v any) error
	// Name returns the name used to select the serializer (e.g. on the command line)
	Name() string
}

// ByName returns the serializer registered under name, nil if there is none
func ByName(name string) IRPCSerializer {
	switch name {
	case "json":
		return NewJSONSerializer()
	case "jsoniter":
		return NewJSONIterSerializer()
	default:
		return nil
	}
}
