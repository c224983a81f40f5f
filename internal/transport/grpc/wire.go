package grpc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/service/studio"
)

// Records cross the wire as structpb.Struct values keyed like the REST API.
// Occurrence instants use the JSON form of google.protobuf.Timestamp.

// textField reads key as text. Numbers are printed and lists of either are
// joined with ';', the way browser forms send dayOfWeek and daysOfMonth.
func textField(s *structpb.Struct, key string) string {
	return valueText(s.GetFields()[key])
}

func valueText(v *structpb.Value) string {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	case *structpb.Value_ListValue:
		parts := make([]string, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			parts = append(parts, valueText(item))
		}
		return strings.Join(parts, ";")
	}
	return ""
}

// intField reads key as a whole number. A missing or null field is zero.
func intField(s *structpb.Struct, key string) (int, bool) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, true
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return 0, true
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case *structpb.Value_StringValue:
		n, err := strconv.Atoi(strings.TrimSpace(k.StringValue))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func recurrenceFields(s *structpb.Struct) studio.RecurrenceInput {
	return studio.RecurrenceInput{
		Method:      textField(s, "method"),
		Time:        textField(s, "time"),
		Date:        textField(s, "date"),
		DayOfWeek:   textField(s, "dayOfWeek"),
		DaysOfMonth: textField(s, "daysOfMonth"),
	}
}

func instructorFields(in domain.Instructor) map[string]any {
	return map[string]any{
		"id":        in.ID,
		"firstName": in.FirstName,
		"lastName":  in.LastName,
	}
}

func clientFields(c domain.Client) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"instructorId": c.InstructorID,
		"firstName":    c.FirstName,
		"lastName":     c.LastName,
	}
}

func bookingFields(b domain.Booking) map[string]any {
	return map[string]any{
		"id":           b.ID,
		"instructorId": b.InstructorID,
		"clientId":     b.ClientID,
		"method":       string(b.Method),
		"time":         b.Time,
		"date":         b.Date,
		"dayOfWeek":    b.DayOfWeek,
		"daysOfMonth":  b.DaysOfMonth,
		"exclusions":   b.Exclusions,
	}
}

func occurrenceFields(o domain.Occurrence) (map[string]any, error) {
	at := timestamppb.New(o.DateTime)
	if err := at.CheckValid(); err != nil {
		return nil, fmt.Errorf("occurrence %s: %w", o.ID, err)
	}
	return map[string]any{
		"id":             o.ID,
		"bookingId":      o.BookingID,
		"instructorId":   o.InstructorID,
		"clientId":       o.ClientID,
		"instructorName": o.InstructorName,
		"clientName":     o.ClientName,
		"dateTime":       at.AsTime().Format(time.RFC3339Nano),
		"method":         string(o.Method),
	}, nil
}

func recordList[T any](items []T, fields func(T) map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, fields(item))
	}
	return out
}

func occurrenceList(occs []domain.Occurrence) ([]any, error) {
	out := make([]any, 0, len(occs))
	for _, o := range occs {
		fields, err := occurrenceFields(o)
		if err != nil {
			return nil, err
		}
		out = append(out, fields)
	}
	return out, nil
}

func DecodeInstructor(s *structpb.Struct) domain.Instructor {
	return domain.Instructor{
		ID:        textField(s, "id"),
		FirstName: textField(s, "firstName"),
		LastName:  textField(s, "lastName"),
	}
}

func DecodeClient(s *structpb.Struct) domain.Client {
	return domain.Client{
		ID:           textField(s, "id"),
		InstructorID: textField(s, "instructorId"),
		FirstName:    textField(s, "firstName"),
		LastName:     textField(s, "lastName"),
	}
}

func DecodeBooking(s *structpb.Struct) domain.Booking {
	return domain.Booking{
		ID:           textField(s, "id"),
		InstructorID: textField(s, "instructorId"),
		ClientID:     textField(s, "clientId"),
		Method:       domain.Method(textField(s, "method")),
		Time:         textField(s, "time"),
		Date:         textField(s, "date"),
		DayOfWeek:    textField(s, "dayOfWeek"),
		DaysOfMonth:  textField(s, "daysOfMonth"),
		Exclusions:   textField(s, "exclusions"),
	}
}

// DecodeUpdateResult reads an UpdateBooking reply.
func DecodeUpdateResult(s *structpb.Struct) studio.UpdateBookingResult {
	res := studio.UpdateBookingResult{Updated: DecodeBooking(s.GetFields()["updated"].GetStructValue())}
	if single := s.GetFields()["single"].GetStructValue(); single != nil {
		b := DecodeBooking(single)
		res.Single = &b
	}
	return res
}

func DecodeOccurrence(s *structpb.Struct) (domain.Occurrence, error) {
	if s == nil {
		return domain.Occurrence{}, errors.New("occurrence is not a record")
	}
	at := &timestamppb.Timestamp{}
	if err := protojson.Unmarshal([]byte(strconv.Quote(textField(s, "dateTime"))), at); err != nil {
		return domain.Occurrence{}, fmt.Errorf("occurrence dateTime: %w", err)
	}
	return domain.Occurrence{
		ID:             textField(s, "id"),
		BookingID:      textField(s, "bookingId"),
		InstructorID:   textField(s, "instructorId"),
		ClientID:       textField(s, "clientId"),
		InstructorName: textField(s, "instructorName"),
		ClientName:     textField(s, "clientName"),
		DateTime:       at.AsTime(),
		Method:         domain.Method(textField(s, "method")),
	}, nil
}

func DecodeOccurrences(l *structpb.ListValue) ([]domain.Occurrence, error) {
	out := make([]domain.Occurrence, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		o, err := DecodeOccurrence(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("occurrences[%d]: %w", i, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// DecodeOverview reads a GetOverview reply.
func DecodeOverview(s *structpb.Struct) (studio.Overview, error) {
	var ov studio.Overview
	for _, v := range s.GetFields()["instructors"].GetListValue().GetValues() {
		ov.Instructors = append(ov.Instructors, DecodeInstructor(v.GetStructValue()))
	}
	for _, v := range s.GetFields()["clients"].GetListValue().GetValues() {
		ov.Clients = append(ov.Clients, DecodeClient(v.GetStructValue()))
	}
	for _, v := range s.GetFields()["bookings"].GetListValue().GetValues() {
		ov.Bookings = append(ov.Bookings, DecodeBooking(v.GetStructValue()))
	}
	occs, err := DecodeOccurrences(s.GetFields()["occurrences"].GetListValue())
	if err != nil {
		return studio.Overview{}, err
	}
	ov.Occurrences = occs
	return ov, nil
}
