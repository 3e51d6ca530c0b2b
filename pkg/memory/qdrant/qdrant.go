// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package qdrant implements memory.VectorStore on a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/memory"
)

// idNamespace derives point UUIDs from record IDs that are not UUIDs.
var idNamespace = uuid.MustParse("6f1d4c7e-2b8a-4e55-9c1f-3a7d0e9b5c21")

const scrollPage = 256

type Store struct {
	conn        *grpc.ClientConn
	client      pb.PointsClient
	collections pb.CollectionsClient
}

// New connects to the Qdrant gRPC endpoint at addr (host:6334).
func New(addr string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.New(errors.CodeBackendUnavailable, "connect to qdrant", err).WithContext("addr", addr)
	}
	return &Store{
		conn:        conn,
		client:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Name() string { return "qdrant" }

func (s *Store) EnsureCollection(ctx context.Context, name string, dimension int) error {
	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: name})
	switch {
	case err == nil:
		return checkDimension(name, info, dimension)
	case status.Code(err) != codes.NotFound:
		return errors.New(errors.CodeBackendUnavailable, "get qdrant collection", err).
			WithContext("collection", name).
			WithRecoverable(true)
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return errors.New(errors.CodeStorage, "create qdrant collection", err).WithContext("collection", name)
	}
	return nil
}

func checkDimension(name string, info *pb.GetCollectionInfoResponse, dimension int) error {
	if size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize(); size != 0 && size != uint64(dimension) {
		return errors.Newf(errors.CodeDimensionMismatch, "collection %s has dimension %d, want %d", name, size, dimension)
	}
	return nil
}

// pointID maps a record ID onto the UUIDs Qdrant accepts.
func pointID(id string) *pb.PointId {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewSHA1(idNamespace, []byte(id)).String()
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

func (s *Store) Upsert(ctx context.Context, collection string, points []memory.Point) error {
	qPoints := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		payload := make(map[string]*pb.Value, len(p.Payload)+1)
		for k, v := range p.Payload {
			if value := toValue(v); value != nil {
				payload[k] = value
			}
		}
		// The payload keeps the caller's ID when it had to be hashed.
		payload[memory.PayloadKeyID] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: p.ID}}

		qPoints[i] = &pb.PointStruct{
			Id: pointID(p.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := s.client.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qPoints,
	})
	if err != nil {
		return errors.New(errors.CodeStorage, "upsert qdrant points", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int) ([]memory.SearchResult, error) {
	resp, err := s.client.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, errors.New(errors.CodeStorage, "search qdrant points", err)
	}

	results := make([]memory.SearchResult, len(resp.Result))
	for i, r := range resp.Result {
		p := toPoint(r.Id, r.Payload)
		results[i] = memory.SearchResult{ID: p.ID, Score: r.Score, Point: p}
	}
	return results, nil
}

func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pids := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}
	wait := true
	_, err := s.client.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pids},
			},
		},
	})
	if err != nil {
		return errors.New(errors.CodeStorage, "delete qdrant points", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	exact := true
	resp, err := s.client.Count(ctx, &pb.CountPoints{CollectionName: collection, Exact: &exact})
	if err != nil {
		return 0, errors.New(errors.CodeStorage, "count qdrant points", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Scan pages through the collection with Scroll. Vectors are not loaded.
func (s *Store) Scan(ctx context.Context, collection string) ([]memory.Point, error) {
	var (
		out    []memory.Point
		offset *pb.PointId
	)
	limit := uint32(scrollPage)
	for {
		resp, err := s.client.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, errors.New(errors.CodeStorage, "scroll qdrant points", err)
		}
		for _, r := range resp.Result {
			out = append(out, toPoint(r.Id, r.Payload))
		}
		offset = resp.NextPageOffset
		if offset == nil {
			return out, nil
		}
	}
}

func toValue(v any) *pb.Value {
	switch val := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}
	default:
		return nil
	}
}

func toPoint(id *pb.PointId, in map[string]*pb.Value) memory.Point {
	payload := make(map[string]any, len(in))
	for k, v := range in {
		switch knd := v.GetKind().(type) {
		case *pb.Value_StringValue:
			payload[k] = knd.StringValue
		case *pb.Value_IntegerValue:
			payload[k] = knd.IntegerValue
		case *pb.Value_DoubleValue:
			payload[k] = knd.DoubleValue
		case *pb.Value_BoolValue:
			payload[k] = knd.BoolValue
		}
	}
	recordID := memory.PayloadString(payload, memory.PayloadKeyID)
	if recordID == "" {
		if id.GetUuid() != "" {
			recordID = id.GetUuid()
		} else {
			recordID = fmt.Sprintf("%d", id.GetNum())
		}
	}
	var ts int64
	if v, ok := payload[memory.PayloadKeyTimestamp].(int64); ok {
		ts = v
	}
	return memory.Point{ID: recordID, Payload: payload, Timestamp: ts}
}
