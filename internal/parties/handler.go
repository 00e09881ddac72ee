package parties

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/bananalabs-oss/sleigh/internal/models"
	"github.com/bananalabs-oss/sleigh/internal/phrase"
	"github.com/bananalabs-oss/sleigh/internal/scheduler"
	"github.com/bananalabs-oss/sleigh/internal/store"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	store *store.Store
	sched *scheduler.Scheduler
}

func NewHandler(st *store.Store, sched *scheduler.Scheduler) *Handler {
	return &Handler{store: st, sched: sched}
}

func (h *Handler) CreateParty(c *gin.Context) {
	ctx := c.Request.Context()

	var req struct {
		AdminID      string `json:"admin_id" binding:"required"`
		Name         string `json:"name" binding:"required"`
		SignupWindow string `json:"signup_window" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "admin_id, name and signup_window are required",
		})
		return
	}

	window, err := time.ParseDuration(req.SignupWindow)
	if err != nil || window <= 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "signup_window must be a positive duration",
		})
		return
	}

	seed := phrase.NewSeed()
	joinPhrase := phrase.Encode(seed)

	now := time.Now().UTC()
	party := &models.Party{
		ID:        phrase.PartyID(seed),
		AdminID:   req.AdminID,
		Name:      req.Name,
		StartedAt: now,
		EndsAt:    now.Add(window),
	}

	if err := h.store.CreateParty(ctx, party); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "create_failed",
			Message: "Failed to create party",
		})
		return
	}

	h.sched.Schedule(party)
	log.Printf("Created party %s with join phrase %s, resolves at %s", party.ID, joinPhrase, party.EndsAt)

	c.JSON(http.StatusCreated, gin.H{
		"party_id":    party.ID,
		"join_phrase": joinPhrase,
		"ends_at":     party.EndsAt,
	})
}

func (h *Handler) JoinParty(c *gin.Context) {
	ctx := c.Request.Context()

	var req struct {
		JoinPhrase string `json:"join_phrase" binding:"required"`
		UserID     string `json:"user_id" binding:"required"`
		Name       string `json:"name" binding:"required"`
		Hint       string `json:"hint"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "join_phrase, user_id and name are required",
		})
		return
	}

	seed, err := phrase.Decode(req.JoinPhrase)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_phrase",
			Message: "Incorrect join phrase",
		})
		return
	}

	party, err := h.store.GetParty(ctx, phrase.PartyID(seed))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "No party exists with that join phrase",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "fetch_failed",
			Message: "Failed to fetch party",
		})
		return
	}

	if !party.Open(time.Now().UTC()) {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "party_closed",
			Message: "The party " + party.Name + " is not accepting signups",
		})
		return
	}

	signup := &models.Signup{
		PartyID: party.ID,
		UserID:  req.UserID,
		Name:    req.Name,
		Hint:    req.Hint,
	}
	err = h.store.AddSignup(ctx, signup)
	if errors.Is(err, store.ErrDuplicateSignup) {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "already_joined",
			Message: "You are already in this party",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "join_failed",
			Message: "Failed to join party",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"party_name": party.Name,
		"ends_at":    party.EndsAt,
	})
}

type Assignment struct {
	PartyName    string     `json:"party_name"`
	Status       string     `json:"status"`
	ResolvesAt   *time.Time `json:"resolves_at,omitempty"`
	ReceiverName string     `json:"receiver_name,omitempty"`
	ReceiverHint string     `json:"receiver_hint,omitempty"`
}

const (
	StatusPending   = "pending"
	StatusMatched   = "matched"
	StatusUnmatched = "unmatched"
)

func (h *Handler) GetAssignments(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userId")

	_, userParties, err := h.store.ListUserSignups(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "fetch_failed",
			Message: "Failed to fetch signups",
		})
		return
	}

	assignments := make([]Assignment, 0, len(userParties))
	for i := range userParties {
		party := &userParties[i]

		// Still pending when the deadline passed but the resolution has not
		// committed yet; the collaborator keeps polling.
		if !party.MatchesMade {
			endsAt := party.EndsAt
			assignments = append(assignments, Assignment{
				PartyName:  party.Name,
				Status:     StatusPending,
				ResolvesAt: &endsAt,
			})
			continue
		}

		match, err := h.store.GetMatchFor(ctx, party.ID, userID)
		if errors.Is(err, store.ErrNotFound) {
			// Resolved without pairings: the party never got enough signups.
			assignments = append(assignments, Assignment{
				PartyName: party.Name,
				Status:    StatusUnmatched,
			})
			continue
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "fetch_failed",
				Message: "Failed to fetch match",
			})
			return
		}

		assignments = append(assignments, Assignment{
			PartyName:    party.Name,
			Status:       StatusMatched,
			ReceiverName: match.ReceiverName,
			ReceiverHint: match.ReceiverHint,
		})
	}

	c.JSON(http.StatusOK, assignments)
}
