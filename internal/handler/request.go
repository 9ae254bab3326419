package handler

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/techvaseegrah/gymsaas-sub001/internal/attendance"
	"github.com/techvaseegrah/gymsaas-sub001/internal/roster"
)

var rfidFormat = validation.By(func(v interface{}) error {
	s, _ := v.(string)
	if s != "" && !roster.ValidRFID(roster.NormalizeRFID(s)) {
		return errors.New("must be 2 letters followed by 4 digits")
	}
	return nil
})

type RFIDPunchRequest struct {
	RFID     string          `json:"rfid"`
	Location *attendance.Geo `json:"location"`
}

func (r *RFIDPunchRequest) Validate() error {
	return validation.ValidateStruct(
		r,
		validation.Field(&r.RFID, validation.Required, rfidFormat),
	)
}

type FacePunchRequest struct {
	Descriptor []float64       `json:"descriptor"`
	Location   *attendance.Geo `json:"location"`
}

func (r *FacePunchRequest) Validate() error {
	return validation.ValidateStruct(
		r,
		validation.Field(&r.Descriptor, validation.Required, validation.Length(1, 1024)),
	)
}

type CloseRequest struct {
	FighterID string          `json:"fighterId"`
	Location  *attendance.Geo `json:"location"`
}

func (r *CloseRequest) Validate() error {
	return validation.ValidateStruct(
		r,
		validation.Field(&r.FighterID, validation.Required),
	)
}

type RegisterFighterRequest struct {
	Name    string `json:"name"`
	RFID    string `json:"rfid"`
	Age     int    `json:"age"`
	BatchNo string `json:"batchNo"`
}

func (r *RegisterFighterRequest) Validate() error {
	return validation.ValidateStruct(
		r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.RFID, rfidFormat),
		validation.Field(&r.Age, validation.Min(0), validation.Max(120)),
		validation.Field(&r.BatchNo, validation.Length(0, 50)),
	)
}

type EnrollFacesRequest struct {
	Descriptors [][]float64 `json:"descriptors"`
}

func (r *EnrollFacesRequest) Validate() error {
	return validation.ValidateStruct(
		r,
		validation.Field(&r.Descriptors, validation.Length(0, roster.MaxDescriptors)),
	)
}
