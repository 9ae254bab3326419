package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/techvaseegrah/gymsaas-sub001/internal/roster"
)

type fighterResponse struct {
	*roster.Fighter
	FaceEnrolled bool `json:"faceEnrolled"`
	Descriptors  int  `json:"descriptorCount"`
}

func respondFighter(c *gin.Context, status int, f *roster.Fighter) {
	c.JSON(status, fighterResponse{Fighter: f, FaceEnrolled: f.FaceEnrolled(), Descriptors: len(f.Descriptors)})
}

func (h *Handler) RegisterFighter(c *gin.Context) {
	var req RegisterFighterRequest
	if !bindJSON(c, &req) {
		return
	}
	f, err := h.fighters.Register(c.Request.Context(), roster.RegisterInput{
		Name:    req.Name,
		RFID:    req.RFID,
		Age:     req.Age,
		BatchNo: req.BatchNo,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respondFighter(c, http.StatusCreated, f)
}

func (h *Handler) GetFighter(c *gin.Context) {
	f, err := h.fighters.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respondFighter(c, http.StatusOK, f)
}

func (h *Handler) NewRFID(c *gin.Context) {
	code, err := h.fighters.NewRFID(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rfid": code})
}

func (h *Handler) EnrollFaces(c *gin.Context) {
	var req EnrollFacesRequest
	if !bindJSON(c, &req) {
		return
	}
	descs := make([]roster.Descriptor, 0, len(req.Descriptors))
	for _, v := range req.Descriptors {
		descs = append(descs, roster.Descriptor{Values: v})
	}
	f, err := h.fighters.Enroll(c.Request.Context(), c.Param("id"), descs)
	if err != nil {
		writeError(c, err)
		return
	}
	respondFighter(c, http.StatusOK, f)
}
