package httpapi

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/yxz1025/ai-helper/pkg/provider/asr"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// maxTurnAudioBytes bounds the decoded audio accepted for one voice turn.
const maxTurnAudioBytes = 10 << 20

// ─── Auth ────────────────────────────────────────────────────────────────────

type tokenRequest struct {
	LearnerID string `json:"learner_id"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if len(s.authSecret) == 0 {
		writeErrorMessage(w, http.StatusNotFound, "authentication is disabled")
		return
	}

	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.LearnerID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "learner_id is required")
		return
	}

	token, expiresAt, err := s.issueToken(req.LearnerID, s.now())
	if err != nil {
		s.logger.Error("token issue failed", "err", err)
		writeErrorMessage(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

// ─── Voice turns ─────────────────────────────────────────────────────────────

type voiceTurnRequest struct {
	// Audio is the base64-encoded recording.
	Audio string `json:"audio"`

	// Format defaults to "mp3".
	Format string `json:"format,omitempty"`

	// SampleRate defaults to 16000.
	SampleRate int `json:"sample_rate,omitempty"`

	// Channels defaults to 1.
	Channels int `json:"channels,omitempty"`
}

func (s *Server) handleVoiceTurn(w http.ResponseWriter, r *http.Request) {
	learnerID := learnerFromContext(r.Context())

	var req voiceTurnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "audio is not valid base64")
		return
	}
	if len(audio) == 0 {
		writeErrorMessage(w, http.StatusBadRequest, "audio is required")
		return
	}
	if len(audio) > maxTurnAudioBytes {
		writeErrorMessage(w, http.StatusRequestEntityTooLarge, "audio exceeds size limit")
		return
	}

	session, err := s.hub.Session(r.Context(), learnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	turn, err := session.HandleUserAudio(r.Context(), audio, asr.AudioConfig{
		Format:     req.Format,
		SampleRate: req.SampleRate,
		Channels:   req.Channels,
	})
	if err != nil {
		s.logger.Error("voice turn failed", "learner", learnerID, "err", err)
		writeErrorMessage(w, http.StatusInternalServerError, "voice turn failed")
		return
	}

	writeJSON(w, http.StatusOK, newTurnPayload(turn))
}

// ─── Autonomous chat control ─────────────────────────────────────────────────

func (s *Server) handleChatStart(w http.ResponseWriter, r *http.Request) {
	learnerID := learnerFromContext(r.Context())
	session, err := s.hub.Session(r.Context(), learnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	session.Start(r.Context(), s.hub.AutoChatConfig())
	writeJSON(w, http.StatusOK, session.GetStatus())
}

func (s *Server) handleChatStop(w http.ResponseWriter, r *http.Request) {
	learnerID := learnerFromContext(r.Context())
	session, err := s.hub.Session(r.Context(), learnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	session.Stop(r.Context())
	writeJSON(w, http.StatusOK, session.GetStatus())
}

func (s *Server) handleChatPause(w http.ResponseWriter, r *http.Request) {
	learnerID := learnerFromContext(r.Context())
	session, err := s.hub.Session(r.Context(), learnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	session.Pause(r.Context())
	writeJSON(w, http.StatusOK, session.GetStatus())
}

func (s *Server) handleChatResume(w http.ResponseWriter, r *http.Request) {
	learnerID := learnerFromContext(r.Context())
	session, err := s.hub.Session(r.Context(), learnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	session.Resume(r.Context())
	writeJSON(w, http.StatusOK, session.GetStatus())
}

func (s *Server) handleChatStatus(w http.ResponseWriter, r *http.Request) {
	learnerID := learnerFromContext(r.Context())
	session, err := s.hub.Session(r.Context(), learnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, session.GetStatus())
}

// ─── Profile ─────────────────────────────────────────────────────────────────

type profilePayload struct {
	ID            string `json:"id"`
	Age           int    `json:"age"`
	Difficulty    string `json:"difficulty"`
	Personality   string `json:"personality"`
	TodayPractice int    `json:"today_practice"`
	TotalScore    int    `json:"total_score"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	learnerID := learnerFromContext(r.Context())

	// Going through the hub creates a default profile on first contact.
	if _, err := s.hub.Session(r.Context(), learnerID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	p, err := s.store.LoadProfile(r.Context(), learnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, profilePayload{
		ID:            p.ID,
		Age:           p.Age,
		Difficulty:    string(p.Difficulty),
		Personality:   string(p.Personality),
		TodayPractice: p.TodayPractice,
		TotalScore:    p.TotalScore,
	})
}

type profileUpdateRequest struct {
	Age         int    `json:"age"`
	Difficulty  string `json:"difficulty"`
	Personality string `json:"personality"`
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	learnerID := learnerFromContext(r.Context())

	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Age < types.MinAge || req.Age > types.MaxAge {
		writeErrorMessage(w, http.StatusBadRequest, "age must be between 5 and 10")
		return
	}
	difficulty := types.Difficulty(req.Difficulty)
	if req.Difficulty != "" && !difficulty.IsValid() {
		writeErrorMessage(w, http.StatusBadRequest, "difficulty must be easy, medium, or hard")
		return
	}
	personality := types.Personality(req.Personality)
	if req.Personality != "" && !personality.IsValid() {
		writeErrorMessage(w, http.StatusBadRequest, "personality must be friendly, encouraging, playful, or patient")
		return
	}

	existing, err := s.store.LoadProfile(r.Context(), learnerID)
	if err != nil {
		// First save for this learner.
		existing = types.LearnerProfile{ID: learnerID}
	}
	existing.Age = req.Age
	if req.Difficulty != "" {
		existing.Difficulty = difficulty
	}
	if req.Personality != "" {
		existing.Personality = personality
	}
	existing.LastActive = s.now()
	updated := existing.Clamp()

	if err := s.store.SaveProfile(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, profilePayload{
		ID:            updated.ID,
		Age:           updated.Age,
		Difficulty:    string(updated.Difficulty),
		Personality:   string(updated.Personality),
		TodayPractice: updated.TodayPractice,
		TotalScore:    updated.TotalScore,
	})
}
