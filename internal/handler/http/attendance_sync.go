package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-sync/internal/domain/punch"
	"github.com/cmlabs-hris/attendance-sync/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-sync/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

const noPunchesMessage = "Device returned no punches for the requested range"

type AttendanceSyncHandler interface {
	Manual(w http.ResponseWriter, r *http.Request)
	Incremental(w http.ResponseWriter, r *http.Request)
	FromDatabase(w http.ResponseWriter, r *http.Request)
	Status(w http.ResponseWriter, r *http.Request)
	DeviceInfo(w http.ResponseWriter, r *http.Request)
	Events(w http.ResponseWriter, r *http.Request)
}

type attendanceSyncHandlerImpl struct {
	syncService punch.SyncService
	hub         *sse.Hub
}

func NewAttendanceSyncHandler(syncService punch.SyncService, hub *sse.Hub) AttendanceSyncHandler {
	return &attendanceSyncHandlerImpl{
		syncService: syncService,
		hub:         hub,
	}
}

// Manual implements AttendanceSyncHandler.
func (h *attendanceSyncHandlerImpl) Manual(w http.ResponseWriter, r *http.Request) {
	var req punch.FullSyncRequest

	// Body is optional; an empty one means the whole device log
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Error("Failed to decode request body", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	req.CompanyID = companyID
	req.DeviceAddress = chi.URLParam(r, "deviceAddress")

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.syncService.FullSync(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	respondSync(w, result)
}

// Incremental implements AttendanceSyncHandler.
func (h *attendanceSyncHandlerImpl) Incremental(w http.ResponseWriter, r *http.Request) {
	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	port, ok := queryPort(w, r)
	if !ok {
		return
	}

	req := punch.IncrementalSyncRequest{
		DeviceAddress: chi.URLParam(r, "deviceAddress"),
		CompanyID:     companyID,
		Port:          port,
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.syncService.IncrementalSync(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	respondSync(w, result)
}

// FromDatabase implements AttendanceSyncHandler.
func (h *attendanceSyncHandlerImpl) FromDatabase(w http.ResponseWriter, r *http.Request) {
	startDate := r.URL.Query().Get("startDate")
	endDate := r.URL.Query().Get("endDate")

	missing := map[string]string{}
	if startDate == "" {
		missing["startDate"] = "startDate is required"
	}
	if endDate == "" {
		missing["endDate"] = "endDate is required"
	}
	if len(missing) > 0 {
		response.BadRequest(w, "Missing required query parameters", missing)
		return
	}

	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := punch.QueryRangeRequest{
		DeviceAddress: chi.URLParam(r, "deviceAddress"),
		CompanyID:     companyID,
		StartDate:     startDate,
		EndDate:       endDate,
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.syncService.QueryRange(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Status implements AttendanceSyncHandler.
func (h *attendanceSyncHandlerImpl) Status(w http.ResponseWriter, r *http.Request) {
	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := punch.SyncStatsRequest{
		DeviceAddress: chi.URLParam(r, "deviceAddress"),
		CompanyID:     companyID,
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.syncService.SyncStats(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// DeviceInfo implements AttendanceSyncHandler.
func (h *attendanceSyncHandlerImpl) DeviceInfo(w http.ResponseWriter, r *http.Request) {
	port, ok := queryPort(w, r)
	if !ok {
		return
	}

	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := punch.DeviceInfoRequest{
		DeviceAddress: chi.URLParam(r, "deviceAddress"),
		CompanyID:     companyID,
		Port:          port,
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.syncService.DeviceInfo(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Events streams the sync outcomes of the caller's company as server-sent events.
func (h *attendanceSyncHandlerImpl) Events(w http.ResponseWriter, r *http.Request) {
	companyID, err := jwt.CompanyID(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	// The server write timeout is sized for device calls, not streams.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(companyID)
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"companyId\":%q}\n\n", companyID)
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				slog.Warn("Failed to encode sync event", "event", event.Event, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// respondSync keeps "reachable but empty" distinguishable from success with data.
func respondSync(w http.ResponseWriter, result punch.SyncResult) {
	if result.TotalSeen == 0 {
		response.SuccessWithMessage(w, noPunchesMessage, result)
		return
	}
	response.SuccessWithMessage(w, "Sync completed", result)
}

func queryPort(w http.ResponseWriter, r *http.Request) (int, bool) {
	p := r.URL.Query().Get("port")
	if p == "" {
		return 0, true
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		response.BadRequest(w, "port must be a number", nil)
		return 0, false
	}
	return port, true
}

// queryLimit reads an optional non-negative limit; zero means the default.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(l)
	if err != nil {
		response.BadRequest(w, "limit must be a number", nil)
		return 0, false
	}
	if limit < 0 {
		response.BadRequest(w, "limit must not be negative", nil)
		return 0, false
	}
	return limit, true
}
