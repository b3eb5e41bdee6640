// Package sessions exposes the session service over gRPC as
// spar.v1.SessionService. Every method takes and returns a
// google.protobuf.Struct whose fields follow the message types in this
// package.
package sessions

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
	"github.com/louisbranch/spar/internal/platform/grpc/pagination"
	"github.com/louisbranch/spar/internal/services/session"
	"github.com/louisbranch/spar/internal/services/session/storage"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "spar.v1.SessionService"

const (
	defaultListEventsPageSize = 20
	maxListEventsPageSize     = 100
)

const (
	orderSequenceAsc  = "sequence"
	orderSequenceDesc = "sequence desc"
)

// SessionServiceServer is the server API for spar.v1.SessionService.
type SessionServiceServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Generate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Tick(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(SessionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(SessionServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes spar.v1.SessionService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateSession", SessionServiceServer.CreateSession),
		unaryHandler("GetSession", SessionServiceServer.GetSession),
		unaryHandler("Generate", SessionServiceServer.Generate),
		unaryHandler("Tick", SessionServiceServer.Tick),
		unaryHandler("ListEvents", SessionServiceServer.ListEvents),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "spar/v1/session.proto",
}

// RegisterSessionServiceServer registers srv on s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Service adapts the session service to gRPC.
type Service struct {
	sessions *session.Service
}

// NewService creates a gRPC adapter over sessions.
func NewService(sessions *session.Service) *Service {
	return &Service{sessions: sessions}
}

func (s *Service) ready() error {
	if s == nil || s.sessions == nil {
		return status.Error(codes.Internal, "session service is not configured")
	}
	return nil
}

// CreateSession creates one session.
func (s *Service) CreateSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req CreateSessionRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	seed, err := parseSeed(strings.TrimSpace(req.Seed))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	created, err := s.sessions.Create(ctx, session.CreateRequest{
		Name:      req.Name,
		Seed:      seed,
		Generator: parseGenerator(req.GeneratorType),
		Locale:    req.Locale,
		Scene:     req.Scene,
		Selection: req.Selection,
		State:     req.State,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(SessionResponse{Session: sessionToWire(created)})
}

// GetSession returns one session.
func (s *Service) GetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req GetSessionRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	found, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(SessionResponse{Session: sessionToWire(found)})
}

// Generate produces events in a session.
func (s *Service) Generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req GenerateRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	result, err := s.sessions.Generate(ctx, session.GenerateRequest{
		SessionID:    req.SessionID,
		Count:        req.Count,
		TicksBefore:  req.TicksBefore,
		TicksBetween: req.TicksBetween,
		Scene:        req.Scene,
		ForceEventID: strings.TrimSpace(req.ForceEventID),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(GenerateResponse{
		Session: sessionToWire(result.Session),
		Events:  eventsToWire(result.Events),
	})
}

// Tick advances a session's state without generating.
func (s *Service) Tick(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req TickRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Ticks < 0 {
		return nil, status.Error(codes.InvalidArgument, "ticks must not be negative")
	}
	ticked, err := s.sessions.Tick(ctx, req.SessionID, req.Ticks)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(SessionResponse{Session: sessionToWire(ticked)})
}

// ListEvents returns one page of a session's events.
func (s *Service) ListEvents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req ListEventsRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	orderBy, err := pagination.NormalizeOrderBy(req.OrderBy, pagination.OrderByConfig{
		Default: orderSequenceAsc,
		Allowed: []string{orderSequenceAsc, orderSequenceDesc},
	})
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	page, err := s.sessions.ListEvents(ctx, storage.ListEventsQuery{
		SessionID: req.SessionID,
		PageSize: pagination.ClampPageSize(int32(req.PageSize), pagination.PageSizeConfig{
			Default: defaultListEventsPageSize,
			Max:     maxListEventsPageSize,
		}),
		PageToken:  req.PageToken,
		Descending: orderBy == orderSequenceDesc,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(ListEventsResponse{
		Events:        eventsToWire(page.Events),
		NextPageToken: page.NextPageToken,
	})
}

func respond(v any) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps domain errors to their gRPC codes and everything else to
// Internal.
func toStatus(err error) error {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.ToGRPCStatus()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}

var _ SessionServiceServer = (*Service)(nil)
