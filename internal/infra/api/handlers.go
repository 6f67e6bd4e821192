package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"mentalspace/internal/domain"
	"mentalspace/internal/domain/model"
	"mentalspace/internal/usecase"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in usecase.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.authUC.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	page, err := s.chatUC.ListSessions(r.Context(), principal(r), usecase.ListSessionsQuery{
		Status: model.ChatSessionStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in usecase.CreateSessionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.chatUC.CreateSession(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message           string             `json:"message"`
		Session           *model.ChatSession `json:"session"`
		CounselorAssigned bool               `json:"counselorAssigned"`
	}{"Chat session created successfully", res.Session, res.CounselorAssigned})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if limit < 0 || limit > usecase.MaxMessagePageSize {
		writeError(w, r, s.log, &domain.ValidationError{Details: []string{"limit must be between 1 and 100"}})
		return
	}
	var before time.Time
	if v := q.Get("before"); v != "" {
		before, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, r, s.log, &domain.ValidationError{Details: []string{"before must be an RFC3339 timestamp"}})
			return
		}
	}
	page, err := s.chatUC.GetMessages(r.Context(), principal(r), chi.URLParam(r, "id"), usecase.MessagesQuery{Limit: limit, Before: before})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var in usecase.SendMessageInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	msg, err := s.chatUC.SendMessage(r.Context(), principal(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message     string             `json:"message"`
		ChatMessage *model.ChatMessage `json:"chatMessage"`
	}{"Message sent successfully", msg})
}

type sessionReply struct {
	Message string             `json:"message"`
	Session *model.ChatSession `json:"session"`
}

func (s *Server) handleRateSession(w http.ResponseWriter, r *http.Request) {
	var in usecase.RateSessionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	sess, err := s.chatUC.RateSession(r.Context(), principal(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionReply{"Session rated successfully", sess})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.chatUC.EndSession(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionReply{"Session ended successfully", sess})
}

func (s *Server) handleEscalateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.chatUC.EscalateSession(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionReply{"Session escalated", sess})
}

// counselorView is the public directory entry.
type counselorView struct {
	ID              string   `json:"id"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Avatar          string   `json:"avatar,omitempty"`
	Bio             string   `json:"bio,omitempty"`
	Specializations []string `json:"specializations"`
	Rating          float64  `json:"rating"`
	TotalSessions   int      `json:"totalSessions"`
}

func (s *Server) handleAvailableCounselors(w http.ResponseWriter, r *http.Request) {
	list, err := s.counselorUC.ListAvailable(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]counselorView, 0, len(list))
	for _, c := range list {
		out = append(out, counselorView{
			ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Avatar: c.Avatar, Bio: c.Bio,
			Specializations: c.Specializations, Rating: c.Rating, TotalSessions: c.TotalSessions,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Online *bool `json:"online"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if in.Online == nil {
		writeError(w, r, s.log, &domain.ValidationError{Details: []string{"online is required"}})
		return
	}
	c, err := s.counselorUC.SetPresence(r.Context(), principal(r), *in.Online)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		IsOnline bool                  `json:"isOnline"`
		Status   model.CounselorStatus `json:"status"`
	}{c.IsOnline, c.Status})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
		Version   string `json:"version"`
	}{"OK", time.Now().UTC().Format(time.RFC3339Nano), s.version})
}

func intParam(v, name string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ValidationError{Details: []string{name + " must be an integer"}}
	}
	return n, nil
}
