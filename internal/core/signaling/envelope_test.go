package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []Envelope{
		{Type: KindHost, ClientID: "H0ST-abc123", Message: "stream:live"},
		{Type: KindPeer, ClientID: "P33R-xyz789", Message: "stream:11111111-2222-3333-4444-555555555555"},
		{Type: KindHost, ClientID: "H0ST-abc123", Message: "stream:offline"},
		{Type: KindUnknown, ClientID: "", Message: ""},
	}

	for _, e := range tests {
		got := Decode(Encode(e), FallbackEnvelope())
		assert.Equal(t, e, got)
	}
}

func TestEncodeWireFormat(t *testing.T) {
	data := Encode(Envelope{Type: KindHost, ClientID: "H0ST-abc123", Message: "stream:live"})
	assert.JSONEq(t, `{"type":"host","clientId":"H0ST-abc123","message":"stream:live"}`, string(data))
}

func TestDecodeIsTotal(t *testing.T) {
	fallback := FallbackEnvelope()

	tests := []struct {
		name string
		data string
	}{
		{"malformed json", "{not json"},
		{"empty input", ""},
		{"truncated", `{"type":"host","clientId":`},
		{"json array", `[1,2,3]`},
		{"wrong field types", `{"type":7,"clientId":[],"message":{}}`},
		{"bare string", `"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode([]byte(tt.data), fallback)
			assert.Equal(t, fallback, got)
		})
	}
}

func TestDecodeNormalizesUnknownKind(t *testing.T) {
	got := Decode([]byte(`{"type":"admin","clientId":"X-1","message":"hi"}`), FallbackEnvelope())
	assert.Equal(t, KindUnknown, got.Type)
	assert.Equal(t, "hi", got.Message)
}
