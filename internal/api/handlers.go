package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/miradorstack/mirador-zones/internal/models"
)

// Response statuses carried in every envelope.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusError  = "error"
)

// DatasetNameMetadataKey carries the upload file name on gRPC requests.
const DatasetNameMetadataKey = "x-dataset-name"

// ZoneAnalytics is the domain facade served by the transports.
type ZoneAnalytics interface {
	Upload(ctx context.Context, source string, body io.Reader) (*models.Dataset, error)
	Current() (*models.Dataset, error)
	Clear(ctx context.Context) error
	Transitions(ctx context.Context, filter models.Filter, scenario string) ([]models.TransitionEvent, error)
	Durations(ctx context.Context, minDays int) (models.DurationReport, error)
	Scenarios(ctx context.Context) ([]string, error)
	MatchScenario(ctx context.Context, label string) (models.ScenarioMatch, error)
	Stalled(ctx context.Context) (models.StalledReport, error)
	Patterns(ctx context.Context) ([]models.TransitionPattern, error)
	Summary(ctx context.Context) (models.Summary, error)
}

// Envelope wraps every JSON and Struct response.
type Envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// DatasetInfo describes an extracted dataset without its rows.
type DatasetInfo struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Records  int       `json:"records"`
	Events   int       `json:"events"`
}

// ToDatasetInfo summarises a dataset for responses.
func ToDatasetInfo(ds *models.Dataset) DatasetInfo {
	if ds == nil {
		return DatasetInfo{}
	}
	return DatasetInfo{
		ID:       ds.ID,
		Source:   ds.Source,
		LoadedAt: ds.LoadedAt,
		Records:  len(ds.Records),
		Events:   len(ds.Events),
	}
}

func envelope(data interface{}, empty bool) Envelope {
	if empty {
		return Envelope{Status: StatusNoData, Data: data, Message: models.ErrNoData.Error()}
	}
	return Envelope{Status: StatusOK, Data: data}
}

// ToStruct converts an envelope into a protobuf Struct via its JSON form.
func ToStruct(env Envelope) (*structpb.Struct, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(payload, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromProtoDurationsRequest reads min_days from the request; a missing field
// selects the configured default.
func FromProtoDurationsRequest(req *structpb.Struct) (int, error) {
	if req == nil {
		return -1, nil
	}
	v, ok := req.GetFields()["min_days"]
	if !ok {
		return -1, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: min_days must be a number", models.ErrInvalidArgument)
	}
	days := n.NumberValue
	if days < 0 || days != float64(int(days)) {
		return 0, fmt.Errorf("%w: min_days must be a non-negative integer", models.ErrInvalidArgument)
	}
	return int(days), nil
}

// FromProtoScenarioRequest reads the scenario label from "path" or joins the
// "zones" list with separator.
func FromProtoScenarioRequest(req *structpb.Struct, separator string) (string, error) {
	if req == nil {
		return "", fmt.Errorf("%w: request is nil", models.ErrInvalidScenario)
	}
	fields := req.GetFields()
	if v, ok := fields["path"]; ok {
		return v.GetStringValue(), nil
	}
	if v, ok := fields["zones"]; ok {
		list := v.GetListValue()
		if list == nil {
			return "", fmt.Errorf("%w: zones must be a list", models.ErrInvalidScenario)
		}
		label := ""
		for i, z := range list.GetValues() {
			if i > 0 {
				label += separator
			}
			label += z.GetStringValue()
		}
		return label, nil
	}
	return "", fmt.Errorf("%w: path is required", models.ErrInvalidScenario)
}

// GRPCService adapts ZoneAnalytics to the ZoneAnalytics gRPC service.
type GRPCService struct {
	svc       ZoneAnalytics
	separator string
	logger    *slog.Logger
}

// NewGRPCService constructs the gRPC facade.
func NewGRPCService(logger *slog.Logger, svc ZoneAnalytics, separator string) *GRPCService {
	if logger == nil {
		logger = slog.Default()
	}
	if separator == "" {
		separator = " → "
	}
	return &GRPCService{svc: svc, separator: separator, logger: logger}
}

var _ ZoneAnalyticsServer = (*GRPCService)(nil)

// UploadDataset extracts a dataset from the uploaded spreadsheet bytes.
func (s *GRPCService) UploadDataset(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if req == nil || len(req.GetValue()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "upload body is empty")
	}
	name := "upload"
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(DatasetNameMetadataKey); len(values) > 0 && values[0] != "" {
			name = values[0]
		}
	}
	ds, err := s.svc.Upload(ctx, name, bytes.NewReader(req.GetValue()))
	if err != nil {
		return nil, s.grpcError("UploadDataset", err)
	}
	return s.reply(envelope(ToDatasetInfo(ds), len(ds.Events) == 0))
}

// GetDurations returns durations before the terminal zone with per-zone stats.
func (s *GRPCService) GetDurations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	minDays, err := FromProtoDurationsRequest(req)
	if err != nil {
		return nil, s.grpcError("GetDurations", err)
	}
	report, err := s.svc.Durations(ctx, minDays)
	if err != nil {
		return nil, s.grpcError("GetDurations", err)
	}
	return s.reply(envelope(report, report.Empty()))
}

// MatchScenario returns entities whose trajectory contains the requested path.
func (s *GRPCService) MatchScenario(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	label, err := FromProtoScenarioRequest(req, s.separator)
	if err != nil {
		return nil, s.grpcError("MatchScenario", err)
	}
	match, err := s.svc.MatchScenario(ctx, label)
	if err != nil {
		return nil, s.grpcError("MatchScenario", err)
	}
	return s.reply(envelope(match, match.Empty()))
}

// ListScenarios lists selectable scenarios.
func (s *GRPCService) ListScenarios(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	scenarios, err := s.svc.Scenarios(ctx)
	if err != nil {
		return nil, s.grpcError("ListScenarios", err)
	}
	return s.reply(envelope(scenarios, len(scenarios) == 0))
}

// GetStalled lists entities that have not reached the terminal zone.
func (s *GRPCService) GetStalled(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	report, err := s.svc.Stalled(ctx)
	if err != nil {
		return nil, s.grpcError("GetStalled", err)
	}
	return s.reply(envelope(report, report.Empty()))
}

func (s *GRPCService) reply(env Envelope) (*structpb.Struct, error) {
	out, err := ToStruct(env)
	if err != nil {
		s.logger.Error("encode response failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func (s *GRPCService) grpcError(method string, err error) error {
	code := GRPCCode(err)
	if code == codes.Internal {
		s.logger.Error("rpc failed", slog.String("method", method), slog.Any("error", err))
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

// GRPCCode maps domain errors onto gRPC status codes.
func GRPCCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, models.ErrMalformedInput),
		errors.Is(err, models.ErrInvalidScenario),
		errors.Is(err, models.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, models.ErrNoDataset):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain errors onto HTTP status codes.
func HTTPStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	}
	switch GRPCCode(err) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Canceled, codes.DeadlineExceeded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
