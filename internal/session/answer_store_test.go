package session

import (
	"testing"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMixedStore() *AnswerStore {
	return NewAnswerStore([]models.QuestionRef{
		{ID: 1, OrderIndex: 0, Type: models.QuestionSingle, Options: []string{"A", "B", "C"}},
		{ID: 2, OrderIndex: 1, Type: models.QuestionMultiple, Options: []string{"A", "B", "C", "D"}},
		{ID: 3, OrderIndex: 2, Type: models.QuestionOther},
	})
}

func TestAnswerStore_SingleChoiceReplaces(t *testing.T) {
	store := newMixedStore()

	require.NoError(t, store.Set(1, "A"))
	require.NoError(t, store.Set(1, "C"))

	assert.Equal(t, "C", store.Get(1).RawAnswer)
	assert.Len(t, store.Records(), 1)
}

func TestAnswerStore_MultipleChoiceToggles(t *testing.T) {
	tests := []struct {
		name     string
		sequence []string
		expected string
	}{
		{name: "single key", sequence: []string{"B"}, expected: "B"},
		{name: "sorted regardless of click order", sequence: []string{"C", "A"}, expected: "A,C"},
		{name: "order independent", sequence: []string{"A", "C"}, expected: "A,C"},
		{name: "toggle off", sequence: []string{"A", "B", "A"}, expected: "B"},
		{name: "toggle all off", sequence: []string{"D", "D"}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMixedStore()
			for _, key := range tt.sequence {
				require.NoError(t, store.Set(2, key))
			}
			assert.Equal(t, tt.expected, store.Get(2).RawAnswer)
		})
	}
}

func TestAnswerStore_Rejections(t *testing.T) {
	store := newMixedStore()

	assert.ErrorIs(t, store.Set(99, "A"), ErrUnknownQuestion)
	assert.ErrorIs(t, store.Set(1, "Z"), ErrInvalidOption)
	assert.ErrorIs(t, store.Set(1, "   "), ErrInvalidOption)
	assert.ErrorIs(t, store.Set(2, "A,B"), ErrInvalidOption)
	assert.Empty(t, store.Records(), "rejected writes must not create records")
}

func TestAnswerStore_OtherAcceptsAnyKey(t *testing.T) {
	store := newMixedStore()

	require.NoError(t, store.Set(3, " free text "))
	assert.Equal(t, "free text", store.Get(3).RawAnswer)
}

func TestAnswerStore_MarksAreIndependentOfAnswers(t *testing.T) {
	store := newMixedStore()

	require.NoError(t, store.SetMarked(1, true))
	assert.Equal(t, 1, store.MarkedCount())
	assert.Equal(t, 0, store.AnsweredCount())

	marked, err := store.ToggleMark(1)
	require.NoError(t, err)
	assert.False(t, marked)

	_, err = store.ToggleMark(42)
	assert.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestAnswerStore_Seed(t *testing.T) {
	store := newMixedStore()

	store.Seed([]models.AnswerRecord{
		{QuestionID: 1, RawAnswer: "B", TimeSpentSeconds: 12},
		{QuestionID: 2, RawAnswer: "C, A,C", IsMarked: true},
		{QuestionID: 77, RawAnswer: "A"},
		{QuestionID: 3, TimeSpentSeconds: -5},
	})

	records := store.Records()
	require.Len(t, records, 3)
	assert.Equal(t, uint(1), records[0].QuestionID)
	assert.Equal(t, "B", records[0].RawAnswer)
	assert.Equal(t, 12, records[0].TimeSpentSeconds)
	assert.Equal(t, "A,C", records[1].RawAnswer)
	assert.True(t, records[1].IsMarked)
	assert.Equal(t, 0, records[2].TimeSpentSeconds)
	assert.Equal(t, 2, store.AnsweredCount())
}

func TestAnswerStore_AddTimeSpent(t *testing.T) {
	store := newMixedStore()

	store.AddTimeSpent(1, 5)
	store.AddTimeSpent(1, 0)
	store.AddTimeSpent(1, -3)
	store.AddTimeSpent(50, 10)

	assert.Equal(t, 5, store.Get(1).TimeSpentSeconds)
	assert.False(t, store.Get(1).IsAnswered())
}

func TestEncodeOptions(t *testing.T) {
	assert.Equal(t, "A,B,C", EncodeOptions([]string{"C", "A", "B", "A", ""}))
	assert.Equal(t, "", EncodeOptions(nil))
	assert.Equal(t, []string{"A", "B"}, ParseOptions(" A,,B "))
	assert.Empty(t, ParseOptions(""))
}
