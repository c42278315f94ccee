package session

import (
	"sort"
	"strings"

	"github.com/SAP-F-2025/exam-session/internal/models"
)

const answerSeparator = ","

// AnswerStore holds at most one AnswerRecord per question. Records are created on the
// first interaction and only ever overwritten.
type AnswerStore struct {
	questions map[uint]models.QuestionRef
	order     []uint
	records   map[uint]*models.AnswerRecord
}

func NewAnswerStore(questions []models.QuestionRef) *AnswerStore {
	s := &AnswerStore{
		questions: make(map[uint]models.QuestionRef, len(questions)),
		order:     make([]uint, 0, len(questions)),
		records:   make(map[uint]*models.AnswerRecord),
	}
	for _, q := range questions {
		if _, exists := s.questions[q.ID]; exists {
			continue
		}
		s.questions[q.ID] = q
		s.order = append(s.order, q.ID)
	}
	return s
}

func (s *AnswerStore) Has(questionID uint) bool {
	_, ok := s.questions[questionID]
	return ok
}

// Set records key for the question. Single and other questions replace the answer;
// multiple-choice questions toggle key in the selected set.
func (s *AnswerStore) Set(questionID uint, key string) error {
	q, ok := s.questions[questionID]
	if !ok {
		return ErrUnknownQuestion
	}
	key = strings.TrimSpace(key)
	if key == "" || !q.HasOption(key) {
		return ErrInvalidOption
	}

	rec := s.record(questionID)
	switch q.Type {
	case models.QuestionMultiple:
		if strings.Contains(key, answerSeparator) {
			return ErrInvalidOption
		}
		rec.RawAnswer = ToggleOption(rec.RawAnswer, key)
	default:
		rec.RawAnswer = key
	}
	return nil
}

func (s *AnswerStore) SetMarked(questionID uint, marked bool) error {
	if !s.Has(questionID) {
		return ErrUnknownQuestion
	}
	s.record(questionID).IsMarked = marked
	return nil
}

func (s *AnswerStore) ToggleMark(questionID uint) (bool, error) {
	if !s.Has(questionID) {
		return false, ErrUnknownQuestion
	}
	rec := s.record(questionID)
	rec.IsMarked = !rec.IsMarked
	return rec.IsMarked, nil
}

func (s *AnswerStore) AddTimeSpent(questionID uint, seconds int) {
	if seconds <= 0 || !s.Has(questionID) {
		return
	}
	s.record(questionID).TimeSpentSeconds += seconds
}

// Get returns the record for the question, or an empty record if none exists yet.
func (s *AnswerStore) Get(questionID uint) models.AnswerRecord {
	if rec, ok := s.records[questionID]; ok {
		return *rec
	}
	return models.AnswerRecord{QuestionID: questionID}
}

// Seed overwrites records with a prior snapshot. Unknown questions are skipped and
// multiple-choice answers are normalised to the canonical encoding.
func (s *AnswerStore) Seed(records []models.AnswerRecord) {
	for _, r := range records {
		q, ok := s.questions[r.QuestionID]
		if !ok {
			continue
		}
		if q.Type == models.QuestionMultiple {
			r.RawAnswer = EncodeOptions(ParseOptions(r.RawAnswer))
		}
		if r.TimeSpentSeconds < 0 {
			r.TimeSpentSeconds = 0
		}
		rec := r
		s.records[r.QuestionID] = &rec
	}
}

// Records returns copies of the existing records in question order.
func (s *AnswerStore) Records() []models.AnswerRecord {
	out := make([]models.AnswerRecord, 0, len(s.records))
	for _, id := range s.order {
		if rec, ok := s.records[id]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

func (s *AnswerStore) AnsweredCount() int {
	count := 0
	for _, rec := range s.records {
		if rec.IsAnswered() {
			count++
		}
	}
	return count
}

func (s *AnswerStore) MarkedCount() int {
	count := 0
	for _, rec := range s.records {
		if rec.IsMarked {
			count++
		}
	}
	return count
}

func (s *AnswerStore) Total() int {
	return len(s.order)
}

func (s *AnswerStore) record(questionID uint) *models.AnswerRecord {
	rec, ok := s.records[questionID]
	if !ok {
		rec = &models.AnswerRecord{QuestionID: questionID}
		s.records[questionID] = rec
	}
	return rec
}

// ParseOptions splits a raw multi-select answer into its keys, dropping empties.
func ParseOptions(raw string) []string {
	parts := strings.Split(raw, answerSeparator)
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// EncodeOptions returns the canonical encoding: deduplicated, sorted ascending, comma-joined.
func EncodeOptions(keys []string) string {
	seen := make(map[string]struct{}, len(keys))
	unique := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup || k == "" {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, k)
	}
	sort.Strings(unique)
	return strings.Join(unique, answerSeparator)
}

// ToggleOption adds key to the encoded set if absent and removes it otherwise.
func ToggleOption(raw, key string) string {
	keys := ParseOptions(raw)
	next := keys[:0]
	removed := false
	for _, k := range keys {
		if k == key {
			removed = true
			continue
		}
		next = append(next, k)
	}
	if !removed {
		next = append(next, key)
	}
	return EncodeOptions(next)
}
