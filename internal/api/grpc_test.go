package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/miradorstack/mirador-zones/internal/models"
)

func TestGRPCServiceFlow(t *testing.T) {
	svc := NewGRPCService(nil, newTestService(), "")
	ctx := context.Background()

	_, err := svc.GetStalled(ctx, &emptypb.Empty{})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	uploadCtx := metadata.NewIncomingContext(ctx, metadata.Pairs(DatasetNameMetadataKey, "zones.csv"))
	resp, err := svc.UploadDataset(uploadCtx, wrapperspb.Bytes([]byte(upload)))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.GetFields()["status"].GetStringValue())
	assert.Equal(t, "zones.csv", resp.GetFields()["data"].GetStructValue().GetFields()["source"].GetStringValue())

	req, err := structpb.NewStruct(map[string]interface{}{"min_days": 10})
	require.NoError(t, err)
	resp, err = svc.GetDurations(ctx, req)
	require.NoError(t, err)
	records := resp.GetFields()["data"].GetStructValue().GetFields()["records"].GetListValue().GetValues()
	require.Len(t, records, 1)
	assert.Equal(t, "2", records[0].GetStructValue().GetFields()["entity"].GetStringValue())

	req, err = structpb.NewStruct(map[string]interface{}{"zones": []interface{}{"A", "B"}})
	require.NoError(t, err)
	resp, err = svc.MatchScenario(ctx, req)
	require.NoError(t, err)
	entities := resp.GetFields()["data"].GetStructValue().GetFields()["entities"].GetListValue().GetValues()
	require.Len(t, entities, 1)
	assert.Equal(t, "3", entities[0].GetStringValue())

	resp, err = svc.ListScenarios(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Len(t, resp.GetFields()["data"].GetListValue().GetValues(), 12)

	resp, err = svc.GetStalled(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.GetFields()["status"].GetStringValue())
}

func TestGRPCServiceRejectsBadRequests(t *testing.T) {
	svc := NewGRPCService(nil, newTestService(), "")
	ctx := context.Background()

	_, err := svc.UploadDataset(ctx, wrapperspb.Bytes(nil))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.UploadDataset(ctx, wrapperspb.Bytes([]byte("ИНН,Зона\n1,A\n")))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	req, err := structpb.NewStruct(map[string]interface{}{"min_days": -1})
	require.NoError(t, err)
	_, err = svc.GetDurations(ctx, req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.MatchScenario(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServiceDescDispatch(t *testing.T) {
	svc := NewGRPCService(nil, newTestService(), "")
	var method grpc.MethodDesc
	for _, m := range ZoneAnalyticsServiceDesc.Methods {
		if m.MethodName == "ListScenarios" {
			method = m
		}
	}
	require.NotNil(t, method.Handler)
	assert.Empty(t, ZoneAnalyticsServiceDesc.Metadata)

	var seen string
	interceptor := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		seen = info.FullMethod
		return handler(ctx, req)
	}
	dec := func(interface{}) error { return nil }

	_, err := method.Handler(svc, context.Background(), dec, interceptor)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, "/mirador.zones.v1.ZoneAnalytics/ListScenarios", seen)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
		http int
	}{
		{fmt.Errorf("ingest: %w", models.ErrMalformedInput), codes.InvalidArgument, http.StatusBadRequest},
		{models.ErrInvalidScenario, codes.InvalidArgument, http.StatusBadRequest},
		{models.ErrNoDataset, codes.FailedPrecondition, http.StatusConflict},
		{context.Canceled, codes.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), codes.Internal, http.StatusInternalServerError},
		{fmt.Errorf("read: %w", &http.MaxBytesError{Limit: 1}), codes.Internal, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, GRPCCode(tc.err), tc.err.Error())
		assert.Equal(t, tc.http, HTTPStatus(tc.err), tc.err.Error())
	}
}
