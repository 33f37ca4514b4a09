package serializer

import (
	"fmt"
	"strings"
	"testing"
)

// benchmarkPayloads returns gateway-like replies of growing size
func benchmarkPayloads() map[string][]byte {
	docs := func(n int) []byte {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = fmt.Sprintf(`{"_id":"doc-%d","value":"%s"}`, i, strings.Repeat("x", 100))
		}
		return []byte("[" + strings.Join(parts, ",") + "]")
	}
	return map[string][]byte{
		"Descriptor": []byte(`{"address":"/orbitdb/zdpuA/kv","dbname":"kv","type":"keyvalue","ready":true}`),
		"Docs10":     docs(10),
		"Docs1000":   docs(1000),
	}
}

func BenchmarkDeserialize(b *testing.B) {
	for name, factory := range testSerializers {
		s := factory()
		for payloadName, payload := range benchmarkPayloads() {
			b.Run(name+"/"+payloadName, func(b *testing.B) {
				b.SetBytes(int64(len(payload)))
				for i := 0; i < b.N; i++ {
					var v any
					if err := s.Deserialize(payload, &v); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
