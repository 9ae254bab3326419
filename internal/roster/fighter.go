package roster

import (
	"context"
	"errors"
	"time"
)

const (
	// MinDescriptors is the smallest non-empty enrollment accepted.
	MinDescriptors = 3
	// MaxDescriptors caps the stored face samples per fighter.
	MaxDescriptors = 5
)

var (
	ErrFighterNotFound     = errors.New("fighter not found")
	ErrRFIDTaken           = errors.New("rfid already assigned")
	ErrInvalidRFID         = errors.New("rfid must be 2 letters followed by 4 digits")
	ErrInvalidEnrollment   = errors.New("face enrollment needs 0 or 3 to 5 descriptors")
	ErrDescriptorDimension = errors.New("face descriptor has wrong dimension")
	ErrDescriptorValues    = errors.New("face descriptor contains non-finite values")
	ErrNameRequired        = errors.New("fighter name required")
)

// Descriptor is one enrolled face sample.
type Descriptor struct {
	Values     []float64 `json:"values"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Fighter is a gym member as seen by attendance.
type Fighter struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	RFID        string       `json:"rfid"`
	Age         int          `json:"age,omitempty"`
	BatchNo     string       `json:"batchNo,omitempty"`
	Descriptors []Descriptor `json:"-"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// FaceEnrolled reports whether the fighter can be matched by face.
func (f Fighter) FaceEnrolled() bool {
	return len(f.Descriptors) >= MinDescriptors
}

// Enrolled pairs a descriptor with its owner for gallery matching.
type Enrolled struct {
	FighterID  string
	Descriptor Descriptor
}

// Store persists fighters and their face descriptors.
type Store interface {
	Create(ctx context.Context, f *Fighter) error
	Get(ctx context.Context, id string) (*Fighter, error)
	GetByRFID(ctx context.Context, rfid string) (*Fighter, error)
	GetMany(ctx context.Context, ids []string) (map[string]Fighter, error)
	RFIDExists(ctx context.Context, rfid string) (bool, error)
	ReplaceDescriptors(ctx context.Context, id string, descriptors []Descriptor) error
	Descriptors(ctx context.Context) ([]Enrolled, error)
}
