package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/dmitrijs2005/progres-gateway/internal/server/auth"
	"github.com/dmitrijs2005/progres-gateway/internal/server/llm"
)

const recommendationSystemPrompt = `You are an expert academic advisor for the Algerian university system (LMD format).
Analyze the student's academic performance and recommend the best next majors or specialities.

For each recommendation give a match score (0-100) based on the student's strengths,
clear reasoning, key subjects and potential career outcomes.

Always respond with a JSON object of this shape:
{
  "recommendations": [
    {
      "code": "option_code",
      "name": "French name",
      "nameAr": "Arabic name",
      "type": "major|speciality|master",
      "matchScore": 85,
      "reasoning": "why this option suits the student",
      "keySubjects": ["subject1", "subject2"],
      "careerOutcomes": ["career1", "career2"],
      "furtherOptions": ["future_option_code"]
    }
  ],
  "summary": "overall analysis in 2-3 sentences"
}

Prioritize options where the student performed well in related subjects.
Be encouraging but realistic.`

// Chatter is the language model as seen by RecommendationService.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (*llm.Result, error)
}

type RecommendationRequest struct {
	CareerPreference  string   `json:"careerPreference,omitempty"`
	PreferredSubjects []string `json:"preferredSubjects,omitempty"`
	AdditionalContext string   `json:"additionalContext,omitempty"`
}

type CurrentStatus struct {
	University     string   `json:"university,omitempty"`
	Field          string   `json:"field,omitempty"`
	FieldAr        string   `json:"fieldAr,omitempty"`
	Major          string   `json:"major,omitempty"`
	MajorAr        string   `json:"majorAr,omitempty"`
	Speciality     string   `json:"speciality,omitempty"`
	SpecialityAr   string   `json:"specialityAr,omitempty"`
	Level          string   `json:"level,omitempty"`
	LevelAr        string   `json:"levelAr,omitempty"`
	CurrentAverage *float64 `json:"currentAverage,omitempty"`
	AcademicYear   string   `json:"academicYear,omitempty"`

	enrollmentID string
}

type Recommendation struct {
	Code           string   `json:"code"`
	Name           string   `json:"name"`
	NameAr         string   `json:"nameAr"`
	Type           string   `json:"type"`
	MatchScore     int      `json:"matchScore"`
	Reasoning      string   `json:"reasoning"`
	KeySubjects    []string `json:"keySubjects"`
	CareerOutcomes []string `json:"careerOutcomes"`
	FurtherOptions []string `json:"furtherOptions"`
}

type RecommendationResponse struct {
	CurrentStatus   CurrentStatus    `json:"currentStatus"`
	Recommendations []Recommendation `json:"recommendations"`
	Summary         string           `json:"summary"`
	Model           string           `json:"model"`
}

// RecommendationService asks a language model for study path advice based
// on the caller's records.
type RecommendationService struct {
	records RecordSource
	chat    Chatter
	logger  logging.Logger
}

func NewRecommendationService(records RecordSource, chat Chatter, logger logging.Logger) *RecommendationService {
	return &RecommendationService{
		records: records,
		chat:    chat,
		logger:  logger.With("module", "recommendation_service"),
	}
}

// Suggest builds recommendations for the caller. A caller without any
// enrollment gets common.ErrNotFound.
func (s *RecommendationService) Suggest(ctx context.Context, caller auth.Caller, req RecommendationRequest) (*RecommendationResponse, error) {
	raw, err := s.records.Enrollments(ctx, caller.UpstreamCredential, caller.Subject)
	if err != nil {
		return nil, fmt.Errorf("fetch enrollments: %w", classify(err))
	}

	status, err := extractCurrentStatus(raw)
	if err != nil {
		return nil, err
	}

	grades := "No detailed exam data available"
	if status.enrollmentID != "" {
		// Grades only sharpen the prompt; advice is still useful without them.
		if periods, err := s.records.PeriodResults(ctx, caller.UpstreamCredential, caller.Subject, status.enrollmentID); err == nil {
			grades = string(periods)
		} else {
			s.logger.Debug(ctx, "period results unavailable for recommendations", "error", err)
		}
	}

	res, err := s.chat.Chat(ctx, recommendationSystemPrompt, buildUserPrompt(status, grades, req))
	if err != nil {
		return nil, s.chatError(ctx, err)
	}

	out, err := parseRecommendations(res.Content)
	if err != nil {
		s.logger.Error(ctx, "unparseable model response", "error", err)
		return nil, fmt.Errorf("parse model response: %w", common.ErrInternal)
	}
	out.CurrentStatus = *status
	out.Model = res.Model
	return out, nil
}

func (s *RecommendationService) chatError(ctx context.Context, err error) error {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		switch {
		case pe.IsAuth():
			s.logger.Error(ctx, "language model rejected the API key")
			return fmt.Errorf("recommendation service misconfigured: %w", common.ErrInternal)
		case pe.IsRateLimited():
			return fmt.Errorf("recommendation service busy: %w", common.ErrRateLimited)
		}
	}
	s.logger.Error(ctx, "language model call failed", "error", err)
	return fmt.Errorf("recommendation service unavailable: %w", common.ErrUpstreamUnavailable)
}

// extractCurrentStatus reads the most recent enrollment, which the record
// API lists first.
func extractCurrentStatus(raw json.RawMessage) (*CurrentStatus, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var enrollments []map[string]any
	if err := dec.Decode(&enrollments); err != nil {
		return nil, fmt.Errorf("decode enrollments: %w", common.ErrUpstreamUnavailable)
	}
	if len(enrollments) == 0 {
		return nil, fmt.Errorf("no academic enrollment found: %w", common.ErrNotFound)
	}

	latest := enrollments[0]
	st := &CurrentStatus{
		University:   text(latest, "llEtablissementLatin"),
		Field:        text(latest, "llFiliere", "ofLlFiliere"),
		FieldAr:      text(latest, "llFiliereArabe", "ofLlFiliereArabe"),
		Major:        text(latest, "ofLlFiliere"),
		MajorAr:      text(latest, "ofLlFiliereArabe"),
		Speciality:   text(latest, "ofLlSpecialite"),
		SpecialityAr: text(latest, "ofLlSpecialiteArabe"),
		Level:        text(latest, "refLibelleNiveau"),
		LevelAr:      text(latest, "refLibelleNiveauArabe"),
		AcademicYear: text(latest, "anneeAcademiqueCode"),
		enrollmentID: text(latest, "id"),
	}
	if n, ok := latest["lastMoyenne"].(json.Number); ok {
		if avg, err := n.Float64(); err == nil {
			st.CurrentAverage = &avg
		}
	}
	return st, nil
}

// text returns the first non-blank value among keys, rendering numbers as
// their literal text.
func text(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func buildUserPrompt(st *CurrentStatus, grades string, req RecommendationRequest) string {
	var b strings.Builder

	b.WriteString("## Student's Current Academic Status\n")
	fmt.Fprintf(&b, "- Field: %s\n", st.Field)
	fmt.Fprintf(&b, "- Level: %s\n", st.Level)
	if st.Major != "" {
		fmt.Fprintf(&b, "- Major: %s\n", st.Major)
	}
	if st.Speciality != "" {
		fmt.Fprintf(&b, "- Speciality: %s\n", st.Speciality)
	}
	if st.CurrentAverage != nil {
		fmt.Fprintf(&b, "- Current Average: %s/20\n", strconv.FormatFloat(*st.CurrentAverage, 'f', -1, 64))
	}
	if st.University != "" {
		fmt.Fprintf(&b, "- University: %s\n", st.University)
	}
	fmt.Fprintf(&b, "- Academic Year: %s\n\n", st.AcademicYear)

	b.WriteString("## Exam Data and Grades\n")
	b.WriteString(grades)
	b.WriteString("\n\n")

	if req.CareerPreference != "" {
		fmt.Fprintf(&b, "## Student's Career Preference\n%s\n\n", req.CareerPreference)
	}
	if len(req.PreferredSubjects) > 0 {
		fmt.Fprintf(&b, "## Preferred Subjects\n%s\n\n", strings.Join(req.PreferredSubjects, ", "))
	}
	if req.AdditionalContext != "" {
		fmt.Fprintf(&b, "## Additional Context\n%s\n\n", req.AdditionalContext)
	}

	b.WriteString("Based on this information, provide 3-5 personalized recommendations for the student's next academic step.")
	return b.String()
}

// parseRecommendations decodes the model reply and orders it by match score,
// best first, then by name.
func parseRecommendations(content string) (*RecommendationResponse, error) {
	var reply struct {
		Recommendations []struct {
			Recommendation
			Score json.Number `json:"matchScore"`
		} `json:"recommendations"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, err
	}

	recs := make([]Recommendation, 0, len(reply.Recommendations))
	for _, r := range reply.Recommendations {
		rec := r.Recommendation
		rec.MatchScore = score(r.Score)
		if rec.Type == "" {
			rec.Type = "speciality"
		}
		recs = append(recs, rec)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].MatchScore != recs[j].MatchScore {
			return recs[i].MatchScore > recs[j].MatchScore
		}
		return strings.ToLower(recs[i].Name) < strings.ToLower(recs[j].Name)
	})

	return &RecommendationResponse{Recommendations: recs, Summary: reply.Summary}, nil
}

// score accepts integral and fractional scores; anything else counts as 0.
func score(n json.Number) int {
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	if f, err := n.Float64(); err == nil {
		return int(f)
	}
	return 0
}
