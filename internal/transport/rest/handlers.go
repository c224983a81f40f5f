package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"studiobook/backend/internal/calendar"
	"studiobook/backend/internal/service/studio"
	"studiobook/backend/internal/store"
)

// looseString accepts a JSON string, number, or array of either. Arrays are
// joined with ';'. Browser forms send dayOfWeek and daysOfMonth in any of
// these shapes.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	case len(b) > 0 && b[0] == '[':
		var items []looseString
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			parts = append(parts, string(it))
		}
		*s = looseString(strings.Join(parts, ";"))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

type instructorRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type clientRequest struct {
	InstructorID string `json:"instructorId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
}

type reassignRequest struct {
	InstructorID string `json:"instructorId"`
}

type bookingRequest struct {
	InstructorID   string      `json:"instructorId"`
	ClientID       string      `json:"clientId"`
	Method         string      `json:"method"`
	Time           looseString `json:"time"`
	Date           string      `json:"date"`
	DayOfWeek      looseString `json:"dayOfWeek"`
	DaysOfMonth    looseString `json:"daysOfMonth"`
	Scope          string      `json:"scope"`
	OccurrenceDate string      `json:"occurrenceDate"`
}

func (r bookingRequest) recurrence() studio.RecurrenceInput {
	return studio.RecurrenceInput{
		Method:      r.Method,
		Time:        string(r.Time),
		Date:        r.Date,
		DayOfWeek:   string(r.DayOfWeek),
		DaysOfMonth: string(r.DaysOfMonth),
	}
}

type deleteBookingRequest struct {
	Scope          string `json:"scope"`
	OccurrenceDate string `json:"occurrenceDate"`
}

var success = gin.H{"success": true}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getAll(c *gin.Context) {
	overview, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to load data")
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *Handler) listOccurrences(c *gin.Context) {
	days := 0
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = n
	}
	occs, err := h.svc.Occurrences(c.Request.Context(), days)
	if err != nil {
		h.fail(c, err, "failed to load occurrences")
		return
	}
	c.JSON(http.StatusOK, gin.H{"occurrences": occs})
}

func (h *Handler) calendarFeed(c *gin.Context) {
	snap, err := h.svc.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to build calendar")
		return
	}
	opts := h.calendar
	opts.Now = h.now().In(h.svc.Location())
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(calendar.BuildFeed(snap, opts)))
}

func (h *Handler) createInstructor(c *gin.Context) {
	var req instructorRequest
	if !h.bind(c, &req) {
		return
	}
	in, err := h.svc.CreateInstructor(c.Request.Context(), studio.CreateInstructorInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.fail(c, err, "failed to create instructor")
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *Handler) deleteInstructor(c *gin.Context) {
	if err := h.svc.DeleteInstructor(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "failed to delete instructor")
		return
	}
	c.JSON(http.StatusOK, success)
}

func (h *Handler) createClient(c *gin.Context) {
	var req clientRequest
	if !h.bind(c, &req) {
		return
	}
	client, err := h.svc.CreateClient(c.Request.Context(), studio.CreateClientInput{
		InstructorID: req.InstructorID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
	if err != nil {
		h.fail(c, err, "failed to create client")
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) reassignClient(c *gin.Context) {
	var req reassignRequest
	if !h.bind(c, &req) {
		return
	}
	client, err := h.svc.ReassignClient(c.Request.Context(), c.Param("id"), req.InstructorID)
	if err != nil {
		h.fail(c, err, "failed to update client")
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) deleteClient(c *gin.Context) {
	if err := h.svc.DeleteClient(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "failed to delete client")
		return
	}
	c.JSON(http.StatusOK, success)
}

func (h *Handler) createBooking(c *gin.Context) {
	var req bookingRequest
	if !h.bind(c, &req) {
		return
	}
	b, err := h.svc.CreateBooking(c.Request.Context(), studio.CreateBookingInput{
		InstructorID:    req.InstructorID,
		ClientID:        req.ClientID,
		RecurrenceInput: req.recurrence(),
	})
	if err != nil {
		h.fail(c, err, "failed to create booking")
		return
	}
	c.JSON(http.StatusOK, b)
}

// updateBooking answers with the booking itself for whole-series edits and
// with {updated, single} when one occurrence was detached.
func (h *Handler) updateBooking(c *gin.Context) {
	var req bookingRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.UpdateBooking(c.Request.Context(), studio.UpdateBookingInput{
		ID:              c.Param("id"),
		Scope:           studio.Scope(req.Scope),
		OccurrenceDate:  req.OccurrenceDate,
		RecurrenceInput: req.recurrence(),
	})
	if err != nil {
		h.fail(c, err, "failed to update booking")
		return
	}
	if res.Single != nil {
		c.JSON(http.StatusOK, gin.H{"updated": res.Updated, "single": res.Single})
		return
	}
	c.JSON(http.StatusOK, res.Updated)
}

// deleteBooking reads scope and occurrenceDate from the JSON body, falling
// back to the query string when the body is empty.
func (h *Handler) deleteBooking(c *gin.Context) {
	var req deleteBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Scope == "" {
		req.Scope = c.Query("scope")
	}
	if req.OccurrenceDate == "" {
		req.OccurrenceDate = c.Query("occurrenceDate")
	}

	err := h.svc.DeleteBooking(c.Request.Context(), studio.DeleteBookingInput{
		ID:             c.Param("id"),
		Scope:          studio.Scope(req.Scope),
		OccurrenceDate: req.OccurrenceDate,
	})
	if err != nil {
		h.fail(c, err, "failed to delete booking")
		return
	}
	c.JSON(http.StatusOK, success)
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.log.Info("invalid request body", slog.Any("err", err), slog.String("path", c.FullPath()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// fail maps service errors onto status codes. Unexpected errors are logged
// and answered with the generic message.
func (h *Handler) fail(c *gin.Context, err error, message string) {
	var vErr *studio.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "the studio changed concurrently, try again"})
	default:
		h.log.Error(message, slog.Any("err", err), slog.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
