package roster

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const rfidAttempts = 20

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Name    string
	RFID    string
	Age     int
	BatchNo string
}

// Service owns fighter identity: registration, RFID assignment and face enrollment.
type Service struct {
	store Store
	dim   int
	now   func() time.Time
}

// NewService creates a roster service. descriptorDim fixes the face vector length.
func NewService(store Store, descriptorDim int) *Service {
	return &Service{store: store, dim: descriptorDim, now: time.Now}
}

// Register creates a fighter. An empty RFID is replaced by a freshly generated one.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Fighter, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	code := NormalizeRFID(in.RFID)
	if code == "" {
		generated, err := s.NewRFID(ctx)
		if err != nil {
			return nil, err
		}
		code = generated
	} else if !ValidRFID(code) {
		return nil, ErrInvalidRFID
	}

	f := &Fighter{
		ID:        uuid.NewString(),
		Name:      name,
		RFID:      code,
		Age:       in.Age,
		BatchNo:   strings.TrimSpace(in.BatchNo),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create fighter: %w", err)
	}
	zap.L().Info("fighter registered", zap.String("fighter_id", f.ID), zap.String("rfid", f.RFID))
	return f, nil
}

// NewRFID returns a code in the card format that no fighter holds yet.
func (s *Service) NewRFID(ctx context.Context) (string, error) {
	for i := 0; i < rfidAttempts; i++ {
		code := randomRFID()
		exists, err := s.store.RFIDExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check rfid: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free rfid after %d attempts: %w", rfidAttempts, ErrRFIDTaken)
}

// Get returns a fighter by id.
func (s *Service) Get(ctx context.Context, id string) (*Fighter, error) {
	return s.store.Get(ctx, id)
}

// GetByRFID returns the fighter holding a card code.
func (s *Service) GetByRFID(ctx context.Context, rfid string) (*Fighter, error) {
	code := NormalizeRFID(rfid)
	if code == "" {
		return nil, ErrFighterNotFound
	}
	return s.store.GetByRFID(ctx, code)
}

// GetMany returns fighters keyed by id; unknown ids are skipped.
func (s *Service) GetMany(ctx context.Context, ids []string) (map[string]Fighter, error) {
	if len(ids) == 0 {
		return map[string]Fighter{}, nil
	}
	return s.store.GetMany(ctx, ids)
}

// Descriptors lists every enrolled face sample.
func (s *Service) Descriptors(ctx context.Context) ([]Enrolled, error) {
	return s.store.Descriptors(ctx)
}

// Enroll replaces the fighter's face samples. Zero clears enrollment; otherwise
// MinDescriptors..MaxDescriptors vectors of the configured dimension are required.
func (s *Service) Enroll(ctx context.Context, id string, descriptors []Descriptor) (*Fighter, error) {
	if err := s.validateEnrollment(descriptors); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	for i := range descriptors {
		if descriptors[i].CapturedAt.IsZero() {
			descriptors[i].CapturedAt = now
		}
	}
	if err := s.store.ReplaceDescriptors(ctx, id, descriptors); err != nil {
		return nil, fmt.Errorf("replace descriptors: %w", err)
	}
	f, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	zap.L().Info("face enrollment updated", zap.String("fighter_id", id), zap.Int("descriptors", len(descriptors)))
	return f, nil
}

func (s *Service) validateEnrollment(descriptors []Descriptor) error {
	n := len(descriptors)
	if n != 0 && (n < MinDescriptors || n > MaxDescriptors) {
		return ErrInvalidEnrollment
	}
	for _, d := range descriptors {
		if s.dim > 0 && len(d.Values) != s.dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDescriptorDimension, len(d.Values), s.dim)
		}
		for _, v := range d.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return ErrDescriptorValues
			}
		}
	}
	return nil
}
