package llmpb

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the fully-qualified gRPC service name, matching what a
// `package nexus.llm.v1; service LLMService` .proto file would declare.
const serviceName = "nexus.llm.v1.LLMService"

// LLMServiceClient is the client-side stub for the LLM service's single
// server-streaming RPC.
type LLMServiceClient interface {
	Generate(ctx context.Context, req *GenerateRequest, opts ...grpc.CallOption) (LLMService_GenerateClient, error)
}

// LLMService_GenerateClient streams GenerateResponse chunks back to the
// caller, mirroring the generated stream-client interface protoc-gen-go-grpc
// emits for a server-streaming method.
type LLMService_GenerateClient interface {
	Recv() (*GenerateResponse, error)
	grpc.ClientStream
}

type llmServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLLMServiceClient builds a client stub bound to an existing
// connection, the same construction shape as a protoc-gen-go-grpc
// NewXClient function.
func NewLLMServiceClient(cc grpc.ClientConnInterface) LLMServiceClient {
	return &llmServiceClient{cc: cc}
}

var generateStreamDesc = grpc.StreamDesc{
	StreamName:    "Generate",
	ServerStreams: true,
}

func (c *llmServiceClient) Generate(ctx context.Context, req *GenerateRequest, opts ...grpc.CallOption) (LLMService_GenerateClient, error) {
	opts = append(opts, grpc.CallContentSubtype(codecName))
	stream, err := c.cc.NewStream(ctx, &generateStreamDesc, "/"+serviceName+"/Generate", opts...)
	if err != nil {
		return nil, err
	}
	s := &generateClientStream{ClientStream: stream}
	if err := s.SendMsg(req); err != nil {
		return nil, err
	}
	if err := s.CloseSend(); err != nil {
		return nil, err
	}
	return s, nil
}

type generateClientStream struct {
	grpc.ClientStream
}

func (s *generateClientStream) Recv() (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := s.RecvMsg(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
