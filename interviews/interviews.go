// Package interviews stores completed interview results, one document per interview.
package interviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/vocaprep/documents"
	"github.com/rs/zerolog/log"
	"gopkg.in/go-playground/validator.v9"
)

const (
	Collection = "interviews"

	StatusCompleted = "completed"

	// CreateResult codes
	CodeValidation = "validation"
	CodeStore      = "store"

	descriptionLength = 100
	msgSaveFailed     = "Failed to save interview"
	msgInvalid        = "Invalid interview data"
)

var validate = validator.New()

type Question struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Feedback struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// Interview is the stored document. ID is the document id and is not stored in the fields.
type Interview struct {
	ID          string     `json:"id,omitempty"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	Questions   []Question `json:"questions"`
	Feedback    Feedback   `json:"feedback"`
	Rating      int        `json:"rating"`
	Role        string     `json:"role"`
	Type        string     `json:"type"`
	TechStack   []string   `json:"techstack"`
	CreatedAt   string     `json:"createdAt"`
	Status      string     `json:"status"`
}

type CreateParams struct {
	UserID        string     `json:"userId" validate:"required"`
	InterviewData string     `json:"interviewData"` // transcript or summary
	Questions     []Question `json:"questions"`
	Feedback      Feedback   `json:"feedback"`
	Rating        int        `json:"rating" validate:"min=1,max=10"`
	Role          string     `json:"role"`
	Type          string     `json:"type"`
	TechStack     []string   `json:"techStack"`
}

type CreateResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

type Service struct {
	store   documents.Store
	nowTime func() time.Time
}

type Option func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func NewService(store documents.Store, options ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("[interviews NewService] document store is required")
	}
	s := &Service{store: store, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Create writes a new interview under an auto-generated id
func (s *Service) Create(ctx context.Context, params CreateParams) CreateResult {
	if err := validate.Struct(params); err != nil {
		log.Debug().Err(err).Msg("interview: invalid input")
		return CreateResult{Success: false, Message: msgInvalid, Code: CodeValidation}
	}

	now := s.nowTime()
	timestamp := now.UTC().Format(time.RFC3339)
	interview := Interview{
		UserID:      params.UserID,
		Title:       "Interview on " + now.Format("1/2/2006"),
		Description: preview(params.InterviewData),
		Date:        timestamp,
		Questions:   params.Questions,
		Feedback:    params.Feedback,
		Rating:      params.Rating,
		Role:        params.Role,
		Type:        params.Type,
		TechStack:   params.TechStack,
		CreatedAt:   timestamp,
		Status:      StatusCompleted,
	}
	if interview.Questions == nil {
		interview.Questions = []Question{}
	}
	if interview.TechStack == nil {
		interview.TechStack = []string{}
	}

	id := documents.NewID()
	if err := s.put(ctx, id, interview); err != nil {
		log.Error().Err(err).Str("userId", params.UserID).Msg("interview: failed to save")
		return CreateResult{Success: false, Message: msgSaveFailed, Code: CodeStore}
	}

	log.Info().Str("id", id).Str("userId", params.UserID).Msg("interview saved")
	return CreateResult{Success: true, ID: id}
}

// Get returns documents.ErrNotFound when there is no interview with this id
func (s *Service) Get(ctx context.Context, id string) (*Interview, error) {
	fields, err := s.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, err
	}
	interview := &Interview{}
	if err := documents.Decode(fields, interview); err != nil {
		return nil, fmt.Errorf("[interviews Get] %w", err)
	}
	interview.ID = id
	return interview, nil
}

func (s *Service) put(ctx context.Context, id string, interview Interview) error {
	fields, err := documents.Encode(interview)
	if err != nil {
		return fmt.Errorf("[interviews put] %w", err)
	}
	return s.store.Set(ctx, Collection, id, fields)
}

// preview is the first 100 characters followed by an ellipsis
func preview(data string) string {
	runes := []rune(data)
	if len(runes) > descriptionLength {
		runes = runes[:descriptionLength]
	}
	return string(runes) + "..."
}
