package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/dmitrijs2005/progres-gateway/internal/server/auth"
)

// RecordSource is the upstream record API as seen by StudentService.
type RecordSource interface {
	Enrollments(ctx context.Context, credential, studentID string) (json.RawMessage, error)
	PeriodResults(ctx context.Context, credential, studentID, enrollmentID string) (json.RawMessage, error)
	PersonalInfo(ctx context.Context, credential, studentID string) (json.RawMessage, error)
	ContinuousGrades(ctx context.Context, credential, enrollmentID string) (json.RawMessage, error)
	ExamGrades(ctx context.Context, credential, enrollmentID string) (json.RawMessage, error)
	Photo(ctx context.Context, credential, studentID string) (json.RawMessage, error)
	Subjects(ctx context.Context, credential, offerID, levelID string) (json.RawMessage, error)
}

// OwnershipChecker confirms a caller owns a resource id.
type OwnershipChecker interface {
	AssertOwned(ctx context.Context, caller auth.Caller, resourceID string) error
}

// StudentService proxies record lookups on behalf of the caller. Every
// lookup keyed by a caller-supplied enrollment id goes through the
// ownership check first.
type StudentService struct {
	records RecordSource
	guard   OwnershipChecker
	logger  logging.Logger
}

func NewStudentService(records RecordSource, guard OwnershipChecker, logger logging.Logger) *StudentService {
	return &StudentService{
		records: records,
		guard:   guard,
		logger:  logger.With("module", "student_service"),
	}
}

// Enrollments returns the caller's enrollment list.
func (s *StudentService) Enrollments(ctx context.Context, caller auth.Caller) (json.RawMessage, error) {
	return s.fetch(ctx, "enrollments", func() (json.RawMessage, error) {
		return s.records.Enrollments(ctx, caller.UpstreamCredential, caller.Subject)
	})
}

func (s *StudentService) PersonalInfo(ctx context.Context, caller auth.Caller) (json.RawMessage, error) {
	return s.fetch(ctx, "personal info", func() (json.RawMessage, error) {
		return s.records.PersonalInfo(ctx, caller.UpstreamCredential, caller.Subject)
	})
}

// Photo returns nil when the caller has no photo on record.
func (s *StudentService) Photo(ctx context.Context, caller auth.Caller) (json.RawMessage, error) {
	return s.fetch(ctx, "photo", func() (json.RawMessage, error) {
		return s.records.Photo(ctx, caller.UpstreamCredential, caller.Subject)
	})
}

func (s *StudentService) PeriodResults(ctx context.Context, caller auth.Caller, enrollmentID string) (json.RawMessage, error) {
	if err := s.guard.AssertOwned(ctx, caller, enrollmentID); err != nil {
		return nil, err
	}
	return s.fetch(ctx, "period results", func() (json.RawMessage, error) {
		return s.records.PeriodResults(ctx, caller.UpstreamCredential, caller.Subject, enrollmentID)
	})
}

func (s *StudentService) ContinuousGrades(ctx context.Context, caller auth.Caller, enrollmentID string) (json.RawMessage, error) {
	if err := s.guard.AssertOwned(ctx, caller, enrollmentID); err != nil {
		return nil, err
	}
	return s.fetch(ctx, "continuous grades", func() (json.RawMessage, error) {
		return s.records.ContinuousGrades(ctx, caller.UpstreamCredential, enrollmentID)
	})
}

func (s *StudentService) ExamGrades(ctx context.Context, caller auth.Caller, enrollmentID string) (json.RawMessage, error) {
	if err := s.guard.AssertOwned(ctx, caller, enrollmentID); err != nil {
		return nil, err
	}
	return s.fetch(ctx, "exam grades", func() (json.RawMessage, error) {
		return s.records.ExamGrades(ctx, caller.UpstreamCredential, enrollmentID)
	})
}

// Subjects returns the subject catalog of a program offer and level. It is
// shared reference data, not a per-student resource.
func (s *StudentService) Subjects(ctx context.Context, caller auth.Caller, offerID, levelID string) (json.RawMessage, error) {
	return s.fetch(ctx, "subjects", func() (json.RawMessage, error) {
		return s.records.Subjects(ctx, caller.UpstreamCredential, offerID, levelID)
	})
}

func (s *StudentService) fetch(ctx context.Context, what string, call func() (json.RawMessage, error)) (json.RawMessage, error) {
	body, err := call()
	if err != nil {
		s.logger.Warn(ctx, "record fetch failed", "record", what, "error", err)
		return nil, fmt.Errorf("fetch %s: %w", what, classify(err))
	}
	return body, nil
}

// classify reduces a collaborator error to one of the sentinel kinds.
func classify(err error) error {
	for _, kind := range []error{
		common.ErrUnauthenticated,
		common.ErrForbidden,
		common.ErrNotFound,
		common.ErrRateLimited,
		common.ErrBadRequest,
		common.ErrUpstreamUnavailable,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return common.ErrInternal
}
