package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/service/studio"
	"studiobook/backend/internal/store"
)

type StudioServer struct {
	svc studioService
	log *slog.Logger
}

type studioService interface {
	Overview(ctx context.Context) (studio.Overview, error)
	Occurrences(ctx context.Context, windowDays int) ([]domain.Occurrence, error)
	CreateInstructor(ctx context.Context, in studio.CreateInstructorInput) (domain.Instructor, error)
	DeleteInstructor(ctx context.Context, id string) error
	CreateClient(ctx context.Context, in studio.CreateClientInput) (domain.Client, error)
	ReassignClient(ctx context.Context, clientID, instructorID string) (domain.Client, error)
	DeleteClient(ctx context.Context, id string) error
	CreateBooking(ctx context.Context, in studio.CreateBookingInput) (domain.Booking, error)
	UpdateBooking(ctx context.Context, in studio.UpdateBookingInput) (studio.UpdateBookingResult, error)
	DeleteBooking(ctx context.Context, in studio.DeleteBookingInput) error
}

var _ StudioServiceServer = (*StudioServer)(nil)

func NewStudioServer(svc studioService, log *slog.Logger) *StudioServer {
	if log == nil {
		log = slog.Default()
	}
	return &StudioServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.studio")),
	}
}

var errNilRequest = status.Error(codes.InvalidArgument, "request is required")

func (s *StudioServer) GetOverview(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetOverview"))

	overview, err := s.svc.Overview(ctx)
	if err != nil {
		return nil, s.statusError(log, err, "overview failed")
	}
	occs, err := occurrenceList(overview.Occurrences)
	if err != nil {
		return nil, s.statusError(log, err, "overview encode failed")
	}
	out, err := structpb.NewStruct(map[string]any{
		"instructors": recordList(overview.Instructors, instructorFields),
		"clients":     recordList(overview.Clients, clientFields),
		"bookings":    recordList(overview.Bookings, bookingFields),
		"occurrences": occs,
	})
	if err != nil {
		return nil, s.statusError(log, err, "overview encode failed")
	}

	log.Debug(
		"overview loaded",
		slog.Int("instructors", len(overview.Instructors)),
		slog.Int("clients", len(overview.Clients)),
		slog.Int("bookings", len(overview.Bookings)),
		slog.Int("occurrences", len(overview.Occurrences)),
	)
	return out, nil
}

func (s *StudioServer) ListOccurrences(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	log := s.log.With(slog.String("rpc", "ListOccurrences"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, errNilRequest
	}
	windowDays, ok := intField(req, "windowDays")
	if !ok || windowDays < 0 {
		log.Warn("invalid request", slog.String("reason", "bad_window"), slog.String("window_days", textField(req, "windowDays")))
		return nil, status.Error(codes.InvalidArgument, "windowDays must be a non-negative integer")
	}

	occs, err := s.svc.Occurrences(ctx, windowDays)
	if err != nil {
		return nil, s.statusError(log, err, "occurrences list failed")
	}
	values, err := occurrenceList(occs)
	if err != nil {
		return nil, s.statusError(log, err, "occurrences encode failed")
	}
	out, err := structpb.NewList(values)
	if err != nil {
		return nil, s.statusError(log, err, "occurrences encode failed")
	}

	log.Debug("occurrences listed", slog.Int("count", len(occs)), slog.Int("window_days", windowDays))
	return out, nil
}

func (s *StudioServer) CreateInstructor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateInstructor"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, errNilRequest
	}

	in, err := s.svc.CreateInstructor(ctx, studio.CreateInstructorInput{
		FirstName: textField(req, "firstName"),
		LastName:  textField(req, "lastName"),
	})
	if err != nil {
		return nil, s.statusError(log, err, "instructor create failed")
	}

	log.Info("instructor created", slog.String("instructor_id", in.ID))
	return s.record(log, instructorFields(in))
}

func (s *StudioServer) DeleteInstructor(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	log := s.log.With(slog.String("rpc", "DeleteInstructor"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, errNilRequest
	}

	id := textField(req, "id")
	if err := s.svc.DeleteInstructor(ctx, id); err != nil {
		return nil, s.statusError(log, err, "instructor delete failed", slog.String("instructor_id", id))
	}

	log.Info("instructor deleted", slog.String("instructor_id", id))
	return &emptypb.Empty{}, nil
}

func (s *StudioServer) CreateClient(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateClient"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, errNilRequest
	}

	instructorID := textField(req, "instructorId")
	c, err := s.svc.CreateClient(ctx, studio.CreateClientInput{
		InstructorID: instructorID,
		FirstName:    textField(req, "firstName"),
		LastName:     textField(req, "lastName"),
	})
	if err != nil {
		return nil, s.statusError(log, err, "client create failed", slog.String("instructor_id", instructorID))
	}

	log.Info("client created", slog.String("client_id", c.ID), slog.String("instructor_id", c.InstructorID))
	return s.record(log, clientFields(c))
}

func (s *StudioServer) ReassignClient(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ReassignClient"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, errNilRequest
	}

	clientID, instructorID := textField(req, "id"), textField(req, "instructorId")
	c, err := s.svc.ReassignClient(ctx, clientID, instructorID)
	if err != nil {
		return nil, s.statusError(log, err, "client reassign failed",
			slog.String("client_id", clientID),
			slog.String("instructor_id", instructorID),
		)
	}

	log.Info("client reassigned", slog.String("client_id", c.ID), slog.String("instructor_id", c.InstructorID))
	return s.record(log, clientFields(c))
}

func (s *StudioServer) DeleteClient(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	log := s.log.With(slog.String("rpc", "DeleteClient"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, errNilRequest
	}

	id := textField(req, "id")
	if err := s.svc.DeleteClient(ctx, id); err != nil {
		return nil, s.statusError(log, err, "client delete failed", slog.String("client_id", id))
	}

	log.Info("client deleted", slog.String("client_id", id))
	return &emptypb.Empty{}, nil
}

func (s *StudioServer) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, errNilRequest
	}

	instructorID, clientID := textField(req, "instructorId"), textField(req, "clientId")
	b, err := s.svc.CreateBooking(ctx, studio.CreateBookingInput{
		InstructorID:    instructorID,
		ClientID:        clientID,
		RecurrenceInput: recurrenceFields(req),
	})
	if err != nil {
		return nil, s.statusError(log, err, "booking create failed",
			slog.String("instructor_id", instructorID),
			slog.String("client_id", clientID),
		)
	}

	log.Info("booking created", slog.String("booking_id", b.ID), slog.String("method", string(b.Method)))
	return s.record(log, bookingFields(b))
}

func (s *StudioServer) UpdateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "UpdateBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, errNilRequest
	}

	id, occurrenceDate := textField(req, "id"), textField(req, "occurrenceDate")
	res, err := s.svc.UpdateBooking(ctx, studio.UpdateBookingInput{
		ID:              id,
		Scope:           studio.Scope(textField(req, "scope")),
		OccurrenceDate:  occurrenceDate,
		RecurrenceInput: recurrenceFields(req),
	})
	if err != nil {
		return nil, s.statusError(log, err, "booking update failed", slog.String("booking_id", id))
	}

	fields := map[string]any{"updated": bookingFields(res.Updated)}
	if res.Single != nil {
		fields["single"] = bookingFields(*res.Single)
		log.Info(
			"booking occurrence detached",
			slog.String("booking_id", res.Updated.ID),
			slog.String("single_id", res.Single.ID),
			slog.String("occurrence_date", occurrenceDate),
		)
	} else {
		log.Info("booking updated", slog.String("booking_id", res.Updated.ID))
	}
	return s.record(log, fields)
}

func (s *StudioServer) DeleteBooking(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	log := s.log.With(slog.String("rpc", "DeleteBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, errNilRequest
	}

	id, scope := textField(req, "id"), textField(req, "scope")
	err := s.svc.DeleteBooking(ctx, studio.DeleteBookingInput{
		ID:             id,
		Scope:          studio.Scope(scope),
		OccurrenceDate: textField(req, "occurrenceDate"),
	})
	if err != nil {
		return nil, s.statusError(log, err, "booking delete failed", slog.String("booking_id", id))
	}

	log.Info("booking deleted", slog.String("booking_id", id), slog.String("scope", scope))
	return &emptypb.Empty{}, nil
}

// record wraps fields for the reply. NewStruct only fails on strings that
// are not valid UTF-8.
func (s *StudioServer) record(log *slog.Logger, fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, s.statusError(log, err, "reply encode failed")
	}
	return out, nil
}

// statusError converts a service error into a gRPC status. Only unexpected
// errors are logged at error level; their detail never reaches the caller.
func (s *StudioServer) statusError(log *slog.Logger, err error, msg string, attrs ...any) error {
	var vErr *studio.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", append([]any{slog.Any("err", err)}, attrs...)...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", append([]any{slog.Any("err", err)}, attrs...)...)
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		log.Info("studio changed concurrently", attrs...)
		return status.Error(codes.Aborted, "the studio changed concurrently, try again")
	default:
		log.Error(msg, append([]any{slog.Any("err", err)}, attrs...)...)
		return status.Error(codes.Internal, "internal error")
	}
}

// DefaultRequestTimeoutInterceptor bounds calls that arrive without a
// deadline.
func DefaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}
