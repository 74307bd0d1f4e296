package handlers

import (
	"errors"
	"net/http"

	"energy-net/internal/api/models"
	"energy-net/internal/controller"
	"energy-net/internal/episode"
	"energy-net/internal/session"

	"github.com/gin-gonic/gin"
)

// SessionHandler drives interactive episodes one phase at a time
type SessionHandler struct {
	deps     *Deps
	sessions *session.Store
}

func NewSessionHandler(deps *Deps, sessions *session.Store) *SessionHandler {
	return &SessionHandler{deps: deps, sessions: sessions}
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
			return
		}
	}
	cfg, err := h.deps.buildConfig(req.Config)
	if err != nil {
		respondError(c, configStatus(err), "INVALID_CONFIG", err)
		return
	}
	ctrl, err := h.deps.newController(cfg)
	if err != nil {
		respondError(c, configStatus(err), "INVALID_CONFIG", err)
		return
	}
	if req.Seed != nil {
		ctrl.Reset(req.Seed)
	}

	sess := h.sessions.Create(ctrl)
	sess.Lock()
	defer sess.Unlock()
	c.JSON(http.StatusCreated, sessionResponse(sess, nil))
}

// GetSession handles GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	h.withSession(c, func(sess *session.Session) {
		c.JSON(http.StatusOK, sessionResponse(sess, nil))
	})
}

// StepISO handles POST /api/v1/sessions/:id/iso
func (h *SessionHandler) StepISO(c *gin.Context) {
	var req models.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	h.withSession(c, func(sess *session.Session) {
		if _, err := sess.Controller.StepISO(req.Action); err != nil {
			respondStepError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionResponse(sess, nil))
	})
}

// StepPCS handles POST /api/v1/sessions/:id/pcs. An empty action lets unit 0's own policy act.
func (h *SessionHandler) StepPCS(c *gin.Context) {
	var req models.ActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
			return
		}
	}
	h.withSession(c, func(sess *session.Session) {
		res, err := sess.Controller.StepPCS(nilIfEmpty(req.Action))
		if err != nil {
			respondStepError(c, err)
			return
		}
		h.observe(res)
		c.JSON(http.StatusOK, sessionResponse(sess, &res))
	})
}

// Step handles POST /api/v1/sessions/:id/step
func (h *SessionHandler) Step(c *gin.Context) {
	var req models.StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	h.withSession(c, func(sess *session.Session) {
		res, err := sess.Controller.Step(req.ISO, nilIfEmpty(req.PCS))
		if err != nil {
			respondStepError(c, err)
			return
		}
		h.observe(res)
		c.JSON(http.StatusOK, sessionResponse(sess, &res))
	})
}

// ResetSession handles POST /api/v1/sessions/:id/reset
func (h *SessionHandler) ResetSession(c *gin.Context) {
	var req models.ResetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
			return
		}
	}
	h.withSession(c, func(sess *session.Session) {
		sess.Controller.Reset(req.Seed)
		c.JSON(http.StatusOK, sessionResponse(sess, nil))
	})
}

// DeleteSession handles DELETE /api/v1/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if !h.sessions.Delete(c.Param("id")) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", session.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// withSession runs fn with the session locked.
func (h *SessionHandler) withSession(c *gin.Context, fn func(sess *session.Session)) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", err)
		return
	}
	sess.Lock()
	defer sess.Unlock()
	fn(sess)
}

func (h *SessionHandler) observe(res controller.StepResult) {
	if h.deps.Recorder == nil {
		return
	}
	info := res.Info
	row := episode.LedgerRow{
		Step:      info.Step,
		BuyPrice:  info.BuyPrice,
		SellPrice: info.SellPrice,
		PCSDemand: info.PCSDemand,
		Shortfall: info.Shortfall,
	}
	if len(info.BatteryLevels) > 0 {
		row.LevelEnd = info.BatteryLevels[0]
	}
	h.deps.Recorder.ObserveStep("session", row)
}

func respondStepError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, controller.ErrEpisodeOver), errors.Is(err, controller.ErrPhaseOrder):
		respondError(c, http.StatusConflict, "STEP_CONFLICT", err)
	default:
		respondError(c, configStatus(err), "STEP_ERROR", err)
	}
}

func sessionResponse(sess *session.Session, res *controller.StepResult) models.SessionResponse {
	ctrl := sess.Controller
	st := ctrl.State()
	return models.SessionResponse{
		ID:             sess.ID,
		Step:           st.StepCount,
		AwaitingPCS:    ctrl.AwaitingPCS(),
		ISOObservation: ctrl.ISOObservation(),
		PCSObservation: ctrl.PCSObservation(),
		ISOActionSpace: ctrl.ISOActionSpace(),
		PCSActionSpace: ctrl.PCSActionSpace(),
		State:          st,
		Result:         res,
	}
}

func nilIfEmpty(a []float64) []float64 {
	if len(a) == 0 {
		return nil
	}
	return a
}
