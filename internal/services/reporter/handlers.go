package reporter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/LeonardoBeccarini/firelinx/internal/coordinates"
	"github.com/LeonardoBeccarini/firelinx/internal/model/entities"
	"github.com/LeonardoBeccarini/firelinx/internal/model/messages"
	"github.com/LeonardoBeccarini/firelinx/internal/remote"
)

const maxBody = 64 << 10

type location struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// reportRequest is the form submission. Omitted fields take the form defaults;
// date and time are stamped on arrival when the form did not send them.
type reportRequest struct {
	FireType      string    `json:"fireType"`
	FireIntensity string    `json:"fireIntensity"`
	Verified      *bool     `json:"verified"`
	User          string    `json:"user"`
	UserID        string    `json:"userID"`
	StnID         string    `json:"stnID"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Location      *location `json:"location"`
}

type sosResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type reportResponse struct {
	Alert messages.AlertMessage `json:"alert"`
	SOS   *sosResult            `json:"sos,omitempty"`
}

func (s *Server) handleDefaults(w http.ResponseWriter, _ *http.Request) {
	ts := coordinates.CurrentTimestamp(s.deps.Clock)
	writeJSON(w, http.StatusOK, entities.NewFireReport(ts.Date, ts.Time))
}

func (s *Server) handleMapConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"mapboxToken": s.deps.MapboxToken})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	report, err := s.buildReport(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := s.deps.Publisher.Publish(r.Context(), report)
	if err != nil {
		if errors.Is(err, entities.ErrInvalidFireType) || errors.Is(err, entities.ErrInvalidFireIntensity) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Warn("report not published", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := reportResponse{Alert: msg}
	if s.deps.SOSEnabled && s.deps.Remote != nil {
		resp.SOS = s.triggerSOS(r)
	}
	writeJSON(w, http.StatusOK, resp)
}

var (
	errLocationRequired = errors.New("location required")
	errInvalidLocation  = errors.New("invalid location")
)

func (s *Server) buildReport(req reportRequest) (entities.FireReport, error) {
	if req.Location == nil || req.Location.Lat == nil || req.Location.Lng == nil {
		return entities.FireReport{}, errLocationRequired
	}
	c := entities.Coordinates{Lat: *req.Location.Lat, Lng: *req.Location.Lng}
	if !c.Valid() {
		return entities.FireReport{}, errInvalidLocation
	}

	ts := coordinates.CurrentTimestamp(s.deps.Clock)
	report := entities.NewFireReport(ts.Date, ts.Time)
	if req.Date != "" && req.Time != "" {
		report.Date, report.Time = req.Date, req.Time
	}
	if v := strings.TrimSpace(req.FireType); v != "" {
		report.FireType = entities.FireType(strings.ToUpper(v))
	}
	if v := strings.TrimSpace(req.FireIntensity); v != "" {
		report.FireIntensity = entities.FireIntensity(v)
	}
	if req.Verified != nil {
		report.Verified = *req.Verified
	}
	report.User = strings.TrimSpace(req.User)
	report.UserID = strings.TrimSpace(req.UserID)
	if v := strings.TrimSpace(req.StnID); v != "" {
		report.StnID = v
	}
	if err := report.Validate(); err != nil {
		return entities.FireReport{}, err
	}

	lat, lng := coordinates.FormatDDM(c)
	return report.WithLocation(lat, lng), nil
}

// triggerSOS runs after a published report; its failure is reported, not fatal.
func (s *Server) triggerSOS(r *http.Request) *sosResult {
	resp, err := s.deps.Remote.TriggerSOS(r.Context())
	if err != nil {
		s.logger.Warn("sos after report failed", "error", err)
		return &sosResult{Status: "failed", Message: err.Error()}
	}
	return &sosResult{Status: "sent", Message: resp.Message}
}

func (s *Server) handleSOS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Remote == nil {
		writeError(w, http.StatusServiceUnavailable, "sos service not configured")
		return
	}
	resp, err := s.deps.Remote.TriggerSOS(r.Context())
	if err != nil {
		writeError(w, remoteStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	if s.deps.Remote == nil {
		writeError(w, http.StatusServiceUnavailable, "recognition service not configured")
		return
	}
	id, resp, err := s.deps.Remote.Recognize(r.Context())
	if err != nil {
		writeError(w, remoteStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user":    id.Name,
		"userID":  id.ID,
		"message": resp.Message,
	})
}

func remoteStatus(err error) int {
	if errors.Is(err, remote.ErrBreakerOpen) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
