package qdrant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jllopis/autoagent/pkg/errors"
)

type fakeCollections struct {
	pb.CollectionsClient
	getErr  error
	size    uint64
	created []string
}

func (f *fakeCollections) Get(_ context.Context, in *pb.GetCollectionInfoRequest, _ ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &pb.GetCollectionInfoResponse{Result: &pb.CollectionInfo{
		Config: &pb.CollectionConfig{Params: &pb.CollectionParams{
			VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{Size: f.size}}},
		}},
	}}, nil
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.created = append(f.created, in.CollectionName)
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func TestEnsureCollection(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeCollections
		code    errors.ErrorCode
		created bool
	}{
		{"existing", &fakeCollections{size: 32}, "", false},
		{"other dimension", &fakeCollections{size: 16}, errors.CodeDimensionMismatch, false},
		{"missing", &fakeCollections{getErr: status.Error(codes.NotFound, "collection not found")}, "", true},
		{"unreachable", &fakeCollections{getErr: status.Error(codes.Unavailable, "connection refused")}, errors.CodeBackendUnavailable, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &Store{collections: tc.fake}
			err := s.EnsureCollection(context.Background(), "fact", 32)
			if tc.code == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.code != "" && !errors.HasCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			if created := len(tc.fake.created) > 0; created != tc.created {
				t.Fatalf("expected created=%v, got %v", tc.created, tc.fake.created)
			}
		})
	}
}
func TestPointIDKeepsUUIDs(t *testing.T) {
	id := uuid.NewString()
	if got := pointID(id).GetUuid(); got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}
	a := pointID("conversation-1").GetUuid()
	b := pointID("conversation-1").GetUuid()
	if a != b {
		t.Fatalf("expected stable derived IDs")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("expected derived ID to be a UUID: %v", err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	in := map[string]any{
		"id":         "conversation-1",
		"text":       "hello",
		"timestamp":  int64(42),
		"confidence": 0.8,
		"flag":       true,
		"skipped":    []string{"unsupported"},
	}
	values := make(map[string]*pb.Value)
	for k, v := range in {
		if value := toValue(v); value != nil {
			values[k] = value
		}
	}
	if _, ok := values["skipped"]; ok {
		t.Fatalf("unsupported payload types must be dropped")
	}
	p := toPoint(pointID("conversation-1"), values)
	if p.ID != "conversation-1" || p.Timestamp != 42 {
		t.Fatalf("unexpected point %+v", p)
	}
	if p.Payload["text"] != "hello" || p.Payload["confidence"] != 0.8 || p.Payload["flag"] != true {
		t.Fatalf("payload not preserved: %+v", p.Payload)
	}
}
