package coordinator

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered as a grpc call content-subtype so the
// quorum client can invoke the sibling coordinators' WhiteFlag service
// without a protoc-generated message/stub pair: this module ships no
// protobuf build step, so request/response bodies are plain Go structs
// marshaled as JSON over the wire instead of protobuf.
const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}
