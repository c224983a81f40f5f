package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/service/studio"
	"studiobook/backend/internal/store"
	"studiobook/backend/internal/store/memstore"
)

type fakeStudioService struct {
	overviewFn         func(ctx context.Context) (studio.Overview, error)
	occurrencesFn      func(ctx context.Context, windowDays int) ([]domain.Occurrence, error)
	createInstructorFn func(ctx context.Context, in studio.CreateInstructorInput) (domain.Instructor, error)
	deleteInstructorFn func(ctx context.Context, id string) error
	createClientFn     func(ctx context.Context, in studio.CreateClientInput) (domain.Client, error)
	reassignClientFn   func(ctx context.Context, clientID, instructorID string) (domain.Client, error)
	deleteClientFn     func(ctx context.Context, id string) error
	createBookingFn    func(ctx context.Context, in studio.CreateBookingInput) (domain.Booking, error)
	updateBookingFn    func(ctx context.Context, in studio.UpdateBookingInput) (studio.UpdateBookingResult, error)
	deleteBookingFn    func(ctx context.Context, in studio.DeleteBookingInput) error
}

func (f *fakeStudioService) Overview(ctx context.Context) (studio.Overview, error) {
	if f.overviewFn == nil {
		panic("Overview not configured")
	}
	return f.overviewFn(ctx)
}

func (f *fakeStudioService) Occurrences(ctx context.Context, windowDays int) ([]domain.Occurrence, error) {
	if f.occurrencesFn == nil {
		panic("Occurrences not configured")
	}
	return f.occurrencesFn(ctx, windowDays)
}

func (f *fakeStudioService) CreateInstructor(ctx context.Context, in studio.CreateInstructorInput) (domain.Instructor, error) {
	if f.createInstructorFn == nil {
		panic("CreateInstructor not configured")
	}
	return f.createInstructorFn(ctx, in)
}

func (f *fakeStudioService) DeleteInstructor(ctx context.Context, id string) error {
	if f.deleteInstructorFn == nil {
		panic("DeleteInstructor not configured")
	}
	return f.deleteInstructorFn(ctx, id)
}

func (f *fakeStudioService) CreateClient(ctx context.Context, in studio.CreateClientInput) (domain.Client, error) {
	if f.createClientFn == nil {
		panic("CreateClient not configured")
	}
	return f.createClientFn(ctx, in)
}

func (f *fakeStudioService) ReassignClient(ctx context.Context, clientID, instructorID string) (domain.Client, error) {
	if f.reassignClientFn == nil {
		panic("ReassignClient not configured")
	}
	return f.reassignClientFn(ctx, clientID, instructorID)
}

func (f *fakeStudioService) DeleteClient(ctx context.Context, id string) error {
	if f.deleteClientFn == nil {
		panic("DeleteClient not configured")
	}
	return f.deleteClientFn(ctx, id)
}

func (f *fakeStudioService) CreateBooking(ctx context.Context, in studio.CreateBookingInput) (domain.Booking, error) {
	if f.createBookingFn == nil {
		panic("CreateBooking not configured")
	}
	return f.createBookingFn(ctx, in)
}

func (f *fakeStudioService) UpdateBooking(ctx context.Context, in studio.UpdateBookingInput) (studio.UpdateBookingResult, error) {
	if f.updateBookingFn == nil {
		panic("UpdateBooking not configured")
	}
	return f.updateBookingFn(ctx, in)
}

func (f *fakeStudioService) DeleteBooking(ctx context.Context, in studio.DeleteBookingInput) error {
	if f.deleteBookingFn == nil {
		panic("DeleteBooking not configured")
	}
	return f.deleteBookingFn(ctx, in)
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct error: %v", err)
	}
	return s
}

func TestCreateBooking_PassesRecurrenceToService(t *testing.T) {
	var got studio.CreateBookingInput
	srv := NewStudioServer(&fakeStudioService{
		createBookingFn: func(ctx context.Context, in studio.CreateBookingInput) (domain.Booking, error) {
			got = in
			return domain.Booking{ID: "b1", Method: domain.MethodMonthly, Time: "18:30", DaysOfMonth: "1;15"}, nil
		},
	}, slog.Default())

	resp, err := srv.CreateBooking(context.Background(), mustStruct(t, map[string]any{
		"instructorId": "i1",
		"clientId":     "c1",
		"method":       "monthly",
		"time":         "18:30",
		"daysOfMonth":  []any{1, 15},
	}))
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
	if b := DecodeBooking(resp); b.ID != "b1" || b.DaysOfMonth != "1;15" {
		t.Fatalf("booking = %+v", b)
	}
	if got.InstructorID != "i1" || got.ClientID != "c1" || got.Method != "monthly" || got.DaysOfMonth != "1;15" || got.Time != "18:30" {
		t.Fatalf("service input = %+v", got)
	}
}

func TestStudioServer_RejectsInvalidRequests(t *testing.T) {
	srv := NewStudioServer(&fakeStudioService{}, slog.Default())

	if _, err := srv.DeleteBooking(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
	for _, window := range []any{-1, 1.5, "soon", true} {
		_, err := srv.ListOccurrences(context.Background(), mustStruct(t, map[string]any{"windowDays": window}))
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("windowDays %v: code = %s, want %s", window, status.Code(err), codes.InvalidArgument)
		}
	}
}

func TestListOccurrences_ReadsWindow(t *testing.T) {
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var got []int
	srv := NewStudioServer(&fakeStudioService{
		occurrencesFn: func(ctx context.Context, windowDays int) ([]domain.Occurrence, error) {
			got = append(got, windowDays)
			return []domain.Occurrence{{ID: "b1-x", BookingID: "b1", DateTime: at, Method: domain.MethodWeekly}}, nil
		},
	}, slog.Default())

	for _, fields := range []map[string]any{{}, {"windowDays": 14}, {"windowDays": "7"}} {
		resp, err := srv.ListOccurrences(context.Background(), mustStruct(t, fields))
		if err != nil {
			t.Fatalf("ListOccurrences(%v) error: %v", fields, err)
		}
		occs, err := DecodeOccurrences(resp)
		if err != nil {
			t.Fatalf("DecodeOccurrences error: %v", err)
		}
		if len(occs) != 1 || !occs[0].DateTime.Equal(at) || occs[0].BookingID != "b1" {
			t.Fatalf("occurrences = %+v", occs)
		}
	}
	if want := []int{0, 14, 7}; fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("window days = %v, want %v", got, want)
	}
}

func TestDecodeOccurrence_RejectsBadInstant(t *testing.T) {
	for _, raw := range []string{"", "2026-01-05", "2026-01-05 09:00"} {
		if _, err := DecodeOccurrence(mustStruct(t, map[string]any{"dateTime": raw})); err == nil {
			t.Fatalf("DecodeOccurrence(%q) succeeded, want error", raw)
		}
	}
}

func TestStudioServer_MapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"not found", fmt.Errorf("lookup: %w", store.ErrNotFound), codes.NotFound},
		{"conflict", store.ErrConflict, codes.Aborted},
		{"validation", &studio.ValidationError{}, codes.InvalidArgument},
		{"other", errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewStudioServer(&fakeStudioService{
				deleteClientFn: func(ctx context.Context, id string) error {
					if id != "c1" {
						t.Fatalf("id = %q, want c1", id)
					}
					return tt.err
				},
			}, slog.Default())

			_, err := srv.DeleteClient(context.Background(), mustStruct(t, map[string]any{"id": "c1"}))
			if status.Code(err) != tt.want {
				t.Fatalf("code = %s, want %s", status.Code(err), tt.want)
			}
			if tt.want == codes.Internal && status.Convert(err).Message() != "internal error" {
				t.Fatalf("message = %q, want internal error", status.Convert(err).Message())
			}
		})
	}
}

func TestUpdateBooking_ReturnsDetachedSingle(t *testing.T) {
	srv := NewStudioServer(&fakeStudioService{
		updateBookingFn: func(ctx context.Context, in studio.UpdateBookingInput) (studio.UpdateBookingResult, error) {
			if in.Scope != studio.ScopeSingle || in.OccurrenceDate != "2026-01-05" || in.Time != "10:00" {
				t.Fatalf("input = %+v", in)
			}
			return studio.UpdateBookingResult{
				Updated: domain.Booking{ID: "b1", Exclusions: "2026-01-05"},
				Single:  &domain.Booking{ID: "b2", Method: domain.MethodOnce, Date: "2026-01-05"},
			}, nil
		},
	}, slog.Default())

	resp, err := srv.UpdateBooking(context.Background(), mustStruct(t, map[string]any{
		"id":             "b1",
		"scope":          "single",
		"occurrenceDate": "2026-01-05",
		"time":           "10:00",
	}))
	if err != nil {
		t.Fatalf("UpdateBooking error: %v", err)
	}
	res := DecodeUpdateResult(resp)
	if res.Single == nil || res.Single.ID != "b2" || res.Updated.Exclusions != "2026-01-05" {
		t.Fatalf("result = %+v", res)
	}
}

func TestDefaultRequestTimeoutInterceptor_AddsDeadline(t *testing.T) {
	interceptor := DefaultRequestTimeoutInterceptor(time.Minute)

	var deadline time.Time
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		deadline, _ = ctx.Deadline()
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if deadline.IsZero() || time.Until(deadline) > time.Minute {
		t.Fatalf("deadline = %v", deadline)
	}

	parent, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	want, _ := parent.Deadline()
	_, _ = interceptor(parent, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		deadline, _ = ctx.Deadline()
		return nil, nil
	})
	if !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want caller's %v", deadline, want)
	}
}

// 2026-01-04 is a Sunday.
var fixedNow = time.Date(2026, 1, 4, 15, 30, 0, 0, time.UTC)

func dialStudio(t *testing.T) *StudioClient {
	t.Helper()

	n := 0
	svc := studio.NewService(memstore.New(domain.Snapshot{}),
		studio.WithClock(func() time.Time { return fixedNow }),
		studio.WithLocation(time.UTC),
		studio.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.UnaryInterceptor(DefaultRequestTimeoutInterceptor(5 * time.Second)))
	RegisterStudioServiceServer(server, NewStudioServer(svc, slog.Default()))
	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewStudioClient(conn)
}

func TestStudioService_RoundTripOverBufconn(t *testing.T) {
	client := dialStudio(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.CreateInstructor(ctx, mustStruct(t, map[string]any{"firstName": "Ada", "lastName": "Lovelace"}))
	if err != nil {
		t.Fatalf("CreateInstructor error: %v", err)
	}
	in := DecodeInstructor(resp)

	resp, err = client.CreateClient(ctx, mustStruct(t, map[string]any{"instructorId": in.ID, "firstName": "Grace", "lastName": "Hopper"}))
	if err != nil {
		t.Fatalf("CreateClient error: %v", err)
	}
	c := DecodeClient(resp)

	resp, err = client.CreateBooking(ctx, mustStruct(t, map[string]any{
		"instructorId": in.ID,
		"clientId":     c.ID,
		"method":       "weekly",
		"time":         "9:00",
		"dayOfWeek":    1,
	}))
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
	b := DecodeBooking(resp)
	if b.Time != "09:00" || b.DayOfWeek != "1" {
		t.Fatalf("booking = %+v", b)
	}

	list, err := client.ListOccurrences(ctx, mustStruct(t, map[string]any{"windowDays": 14}))
	if err != nil {
		t.Fatalf("ListOccurrences error: %v", err)
	}
	occs, err := DecodeOccurrences(list)
	if err != nil {
		t.Fatalf("DecodeOccurrences error: %v", err)
	}
	if len(occs) != 2 {
		t.Fatalf("len(occurrences) = %d, want 2", len(occs))
	}
	first := occs[0]
	if !first.DateTime.Equal(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)) || first.ClientName != "Grace Hopper" {
		t.Fatalf("first occurrence = %+v", first)
	}

	// The occurrence's own instant selects it for a single-scope edit.
	resp, err = client.UpdateBooking(ctx, mustStruct(t, map[string]any{
		"id":             b.ID,
		"scope":          "single",
		"occurrenceDate": list.GetValues()[0].GetStructValue().GetFields()["dateTime"].GetStringValue(),
		"time":           "11:00",
	}))
	if err != nil {
		t.Fatalf("UpdateBooking error: %v", err)
	}
	res := DecodeUpdateResult(resp)
	if res.Single == nil || res.Single.Date != "2026-01-05" || res.Updated.Exclusions != "2026-01-05" {
		t.Fatalf("update result = %+v", res)
	}

	if _, err := client.DeleteBooking(ctx, mustStruct(t, map[string]any{"id": "missing"})); status.Code(err) != codes.NotFound {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.NotFound)
	}
	_, err = client.CreateBooking(ctx, mustStruct(t, map[string]any{"instructorId": in.ID, "clientId": c.ID}))
	if status.Code(err) != codes.InvalidArgument || status.Convert(err).Message() != "missing required fields" {
		t.Fatalf("err = %v, want InvalidArgument missing required fields", err)
	}

	if _, err := client.DeleteInstructor(ctx, mustStruct(t, map[string]any{"id": in.ID})); err != nil {
		t.Fatalf("DeleteInstructor error: %v", err)
	}
	resp, err = client.GetOverview(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("GetOverview error: %v", err)
	}
	overview, err := DecodeOverview(resp)
	if err != nil {
		t.Fatalf("DecodeOverview error: %v", err)
	}
	if len(overview.Instructors)+len(overview.Clients)+len(overview.Bookings)+len(overview.Occurrences) != 0 {
		t.Fatalf("overview = %+v, want empty studio", overview)
	}
	if _, ok := resp.GetFields()["occurrences"]; !ok {
		t.Fatalf("overview reply has no occurrences list")
	}
}
