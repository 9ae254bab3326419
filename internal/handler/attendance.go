package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/techvaseegrah/gymsaas-sub001/internal/attendance"
	"github.com/techvaseegrah/gymsaas-sub001/internal/auth"
)

type punchResponse struct {
	Msg string `json:"msg"`
	attendance.Result
}

type historyResponse struct {
	Records []attendance.DayRecord `json:"records"`
	Count   int                    `json:"count"`
}

func respondPunch(c *gin.Context, res attendance.Result) {
	c.JSON(http.StatusOK, punchResponse{Msg: res.Message(), Result: res})
}

func respondHistory(c *gin.Context, recs []attendance.DayRecord) {
	c.JSON(http.StatusOK, historyResponse{Records: recs, Count: len(recs)})
}

// bindJSON decodes and validates a request body, writing the 400 itself on failure.
func bindJSON(c *gin.Context, req interface{ Validate() error }) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "malformed request body")
		return false
	}
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return false
	}
	return true
}

func (h *Handler) Status(c *gin.Context) {
	st, err := h.att.PeekByRFID(c.Request.Context(), c.Param("rfid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) AdminRFIDPunch(c *gin.Context) {
	var req RFIDPunchRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.att.PunchByRFID(c.Request.Context(), req.RFID, req.Location)
	if err != nil {
		writeError(c, err)
		return
	}
	respondPunch(c, res)
}

func (h *Handler) AdminFacePunch(c *gin.Context) {
	var req FacePunchRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.att.PunchByFace(c.Request.Context(), req.Descriptor, req.Location)
	if err != nil {
		writeError(c, err)
		return
	}
	respondPunch(c, res)
}

func (h *Handler) AdminClose(c *gin.Context) {
	var req CloseRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.att.CloseOpen(c.Request.Context(), req.FighterID, req.Location)
	if err != nil {
		writeError(c, err)
		return
	}
	respondPunch(c, res)
}

func (h *Handler) SelfPunch(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req RFIDPunchRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.att.SelfPunch(c.Request.Context(), claims.Subject, req.RFID, req.Location)
	if err != nil {
		writeError(c, err)
		return
	}
	respondPunch(c, res)
}

func (h *Handler) SelfStatus(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req RFIDPunchRequest
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.att.PeekSelf(c.Request.Context(), claims.Subject, req.RFID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) MyHistory(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var from, to time.Time
	if v := c.Query("date"); v != "" {
		d, err := attendance.ParseDate(v)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		from, to = d, d
	}
	recs, err := h.att.History(c.Request.Context(), claims.Subject, from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	respondHistory(c, recs)
}

func (h *Handler) FighterHistory(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	recs, err := h.att.History(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	respondHistory(c, recs)
}

func (h *Handler) AllHistory(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	recs, err := h.att.HistoryAll(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	respondHistory(c, recs)
}

func dateRange(c *gin.Context) (from, to time.Time, ok bool) {
	var err error
	if v := c.Query("startDate"); v != "" {
		if from, err = attendance.ParseDate(v); err != nil {
			badRequest(c, "startDate must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
	}
	if v := c.Query("endDate"); v != "" {
		if to, err = attendance.ParseDate(v); err != nil {
			badRequest(c, "endDate must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
	}
	return from, to, true
}

// Live streams committed punches to an admin dashboard. A reconnect with the same
// client id replaces the earlier connection.
func (h *Handler) Live(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	id := claims.Subject
	if client := c.Query("client"); client != "" {
		id += ":" + client
	}
	h.hub.ServeWS(c, id)
}
