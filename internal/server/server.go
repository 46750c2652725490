// Package server exposes the scheduler's control API over gRPC as the
// workclip.v1.PlayerControl service.
//
// Messages are protobuf well-known types, so no generated code is needed:
//
//	Play, Pause, Resume, Stop, Replay  StringValue(id)         -> BoolValue
//	Seek                               Struct{id, percent}     -> BoolValue
//	Status                             StringValue(id)         -> Struct
//	List                               Empty                   -> Struct{players}
package server

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ChuLiYu/workclip/internal/scheduler"
	"github.com/ChuLiYu/workclip/pkg/types"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "workclip.v1.PlayerControl"

// Controller is the part of the scheduler the service drives.
type Controller interface {
	Play(id types.PlayerID) error
	Pause(id types.PlayerID) error
	Resume(id types.PlayerID) error
	StopPlayer(id types.PlayerID) error
	Replay(id types.PlayerID) error
	Seek(id types.PlayerID, percent float64) error
	Status(id types.PlayerID) (types.PlayerStatus, error)
	List() []types.PlayerStatus
}

var _ Controller = (*scheduler.Scheduler)(nil)

// PlayerControlServer is the service interface registered with gRPC.
type PlayerControlServer interface {
	Play(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Pause(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Resume(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Stop(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Replay(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Seek(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	Status(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	List(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// Server implements PlayerControlServer over a Controller.
type Server struct {
	ctrl Controller
	log  zerolog.Logger
}

var _ PlayerControlServer = (*Server)(nil)

// NewServer creates a new gRPC server instance.
func NewServer(ctrl Controller) *Server {
	return &Server{ctrl: ctrl, log: log.With().Str("component", "grpc").Logger()}
}

// Register adds the service to g.
func Register(g *grpc.Server, srv PlayerControlServer) {
	g.RegisterService(&ServiceDesc, srv)
}

func (s *Server) Play(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return s.do("Play", in.GetValue(), s.ctrl.Play)
}

func (s *Server) Pause(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return s.do("Pause", in.GetValue(), s.ctrl.Pause)
}

func (s *Server) Resume(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return s.do("Resume", in.GetValue(), s.ctrl.Resume)
}

func (s *Server) Stop(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return s.do("Stop", in.GetValue(), s.ctrl.StopPlayer)
}

func (s *Server) Replay(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return s.do("Replay", in.GetValue(), s.ctrl.Replay)
}

// Seek expects a Struct with a string "id" and a number "percent".
func (s *Server) Seek(ctx context.Context, in *structpb.Struct) (*wrapperspb.BoolValue, error) {
	fields := in.GetFields()
	id := fields["id"].GetStringValue()
	pv, ok := fields["percent"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "seek: missing percent")
	}
	if _, isNum := pv.GetKind().(*structpb.Value_NumberValue); !isNum {
		return nil, status.Error(codes.InvalidArgument, "seek: percent must be a number")
	}
	percent := pv.GetNumberValue()
	return s.do("Seek", id, func(id types.PlayerID) error {
		return s.ctrl.Seek(id, percent)
	})
}

func (s *Server) Status(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "status: empty player id")
	}
	st, err := s.ctrl.Status(types.PlayerID(in.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(statusToMap(st))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) List(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	list := s.ctrl.List()
	players := make([]any, 0, len(list))
	for _, st := range list {
		players = append(players, statusToMap(st))
	}
	out, err := structpb.NewStruct(map[string]any{"players": players})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) do(op, id string, fn func(types.PlayerID) error) (*wrapperspb.BoolValue, error) {
	if id == "" {
		return nil, status.Errorf(codes.InvalidArgument, "%s: empty player id", op)
	}
	if err := fn(types.PlayerID(id)); err != nil {
		s.log.Debug().Err(err).Str("op", op).Str("player", id).Msg("control request rejected")
		return nil, toStatus(err)
	}
	s.log.Info().Str("op", op).Str("player", id).Msg("control request")
	return wrapperspb.Bool(true), nil
}

// toStatus maps scheduler errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrPlayerNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, scheduler.ErrDuplicatePlayer):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, scheduler.ErrInvalidPercent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, scheduler.ErrInvalidState), errors.Is(err, scheduler.ErrStopped):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func statusToMap(st types.PlayerStatus) map[string]any {
	active := make([]any, len(st.Active))
	for i, a := range st.Active {
		active[i] = a
	}
	return map[string]any{
		"id":       string(st.ID),
		"state":    st.State,
		"elapsed":  st.Elapsed,
		"duration": st.Duration,
		"percent":  st.Percent,
		"speed":    st.Speed,
		"loop":     st.Loop,
		"active":   active,
	}
}

func statusFromStruct(s *structpb.Struct) types.PlayerStatus {
	f := s.GetFields()
	st := types.PlayerStatus{
		ID:       types.PlayerID(f["id"].GetStringValue()),
		State:    f["state"].GetStringValue(),
		Elapsed:  f["elapsed"].GetNumberValue(),
		Duration: f["duration"].GetNumberValue(),
		Percent:  f["percent"].GetNumberValue(),
		Speed:    f["speed"].GetNumberValue(),
		Loop:     f["loop"].GetBoolValue(),
	}
	for _, v := range f["active"].GetListValue().GetValues() {
		st.Active = append(st.Active, v.GetStringValue())
	}
	return st
}
