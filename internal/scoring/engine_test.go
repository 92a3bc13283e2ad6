package scoring

import (
	"testing"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcqKey(id uint, correct string, marks float64) Key {
	return Key{QuestionID: id, Type: models.QuestionMCQ, Correct: []string{correct}, Marks: marks}
}

func TestGrade_SingleChoice(t *testing.T) {
	key := mcqKey(1, "A", 5)

	tests := []struct {
		name     string
		payload  string
		correct  bool
		answered bool
		warning  bool
	}{
		{"object form", `{"answers":["A"]}`, true, true, false},
		{"bare string", `"A"`, true, true, false},
		{"case sensitive key", `{"answers":["a"]}`, false, true, false},
		{"wrong key", `{"answers":["B"]}`, false, true, false},
		{"two keys", `{"answers":["A","B"]}`, false, true, true},
		{"null", `null`, false, false, false},
		{"empty list", `{"answers":[]}`, false, false, false},
		{"number", `42`, false, false, true},
		{"unknown object", `{"choice":"A"}`, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Grade(key, []byte(tt.payload))
			assert.Equal(t, tt.correct, out.Correct)
			assert.Equal(t, tt.answered, out.Answered)
			assert.Equal(t, tt.warning, out.Warning != "", out.Warning)
			if tt.correct {
				assert.Equal(t, 5.0, out.Awarded)
			} else {
				assert.Zero(t, out.Awarded)
			}
		})
	}
}

func TestGrade_MultiChoiceExactSet(t *testing.T) {
	key := Key{QuestionID: 2, Type: models.QuestionMulti, Correct: []string{"A", "C"}, Marks: 4}

	assert.True(t, Grade(key, EncodeChoices("C", "A")).Correct)
	assert.True(t, Grade(key, EncodeChoices("A", "C", "A")).Correct)
	assert.False(t, Grade(key, EncodeChoices("A")).Correct, "subset gets no credit")
	assert.False(t, Grade(key, EncodeChoices("A", "B", "C")).Correct, "superset gets no credit")
	assert.False(t, Grade(key, nil).Answered)
}

func TestGrade_FillBlank(t *testing.T) {
	key := Key{QuestionID: 3, Type: models.QuestionFIB, Correct: []string{"g", "gram"}, Marks: 5}

	assert.True(t, Grade(key, EncodeText("g")).Correct)
	assert.True(t, Grade(key, EncodeText("  G ")).Correct)
	assert.True(t, Grade(key, EncodeText("GRAM")).Correct)
	assert.True(t, Grade(key, []byte(`{"answers":["gram"]}`)).Correct)
	assert.False(t, Grade(key, EncodeText("kg")).Correct)

	blank := Grade(key, EncodeText("   "))
	assert.False(t, blank.Answered)
	assert.Empty(t, blank.Warning)
}

func TestScore_AllCorrectFullMarks(t *testing.T) {
	keys := []Key{
		mcqKey(1, "A", 5),
		{QuestionID: 2, Type: models.QuestionFIB, Correct: []string{"g"}, Marks: 5},
	}
	inputs := []Input{
		{QuestionID: 1, Payload: EncodeChoices("A")},
		{QuestionID: 2, Payload: EncodeText("g")},
	}

	result := Score(keys, inputs, Options{})
	assert.Equal(t, 10.0, result.TotalScore)
	assert.Equal(t, 10.0, result.TotalMarks)
	assert.Equal(t, 100.0, result.Percentage)
	assert.Empty(t, result.Warnings)
}

func TestScore_MalformedDoesNotAbort(t *testing.T) {
	keys := []Key{mcqKey(1, "A", 5), mcqKey(2, "B", 5)}
	inputs := []Input{
		{QuestionID: 1, Payload: []byte(`{"answers":[1,2]}`)},
		{QuestionID: 2, Payload: EncodeChoices("B")},
	}

	result := Score(keys, inputs, Options{})
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, uint(1), result.Warnings[0].QuestionID)
	assert.Equal(t, 5.0, result.TotalScore)
	assert.Equal(t, 50.0, result.Percentage)
}

func TestScore_ZeroTotalMarks(t *testing.T) {
	result := Score(nil, []Input{{QuestionID: 9, Payload: EncodeText("x")}}, Options{})
	assert.Zero(t, result.TotalMarks)
	assert.Zero(t, result.Percentage)
	require.Len(t, result.Outcomes, 1)
	assert.False(t, result.Outcomes[0].Correct)
}

func TestScore_Idempotent(t *testing.T) {
	keys := []Key{mcqKey(1, "A", 2.5), mcqKey(2, "B", 1.25)}
	inputs := []Input{
		{QuestionID: 1, Payload: EncodeChoices("A")},
		{QuestionID: 2, Payload: EncodeChoices("C")},
	}
	assert.Equal(t, Score(keys, inputs, Options{}), Score(keys, inputs, Options{}))
}

func TestScore_TeacherMarksFoldIn(t *testing.T) {
	keys := []Key{
		mcqKey(1, "A", 5),
		{QuestionID: 2, Type: models.QuestionFIB, Correct: []string{"g"}, Marks: 5},
	}
	half := 0.5
	tooMuch := 12.0
	inputs := []Input{
		{QuestionID: 1, Payload: EncodeChoices("A"), TeacherMark: &tooMuch},
		{QuestionID: 2, Payload: EncodeText("grams"), TeacherMark: &half},
	}

	baseline := Score(keys, inputs, Options{})
	assert.Equal(t, 5.0, baseline.TotalScore)

	folded := Score(keys, inputs, Options{ApplyTeacherMarks: true})
	assert.Equal(t, 5.5, folded.TotalScore)
	assert.Equal(t, 55.0, folded.Percentage)
	assert.False(t, folded.Outcomes[1].Correct, "automatic correctness is untouched")
}

func TestKeysFromExam_UsesOverride(t *testing.T) {
	override := 2.0
	links := []*models.ExamQuestion{
		{QuestionID: 1, Question: &models.Question{ID: 1, Type: models.QuestionMCQ, Marks: 5, CorrectAnswers: []byte(`["A"]`)}},
		{QuestionID: 2, MarksOverride: &override, Question: &models.Question{ID: 2, Type: models.QuestionFIB, Marks: 5, CorrectAnswers: []byte(`"g"`)}},
		{QuestionID: 3},
	}

	keys := KeysFromExam(links)
	require.Len(t, keys, 2)
	assert.Equal(t, 5.0, keys[0].Marks)
	assert.Equal(t, 2.0, keys[1].Marks)
	assert.Equal(t, []string{"g"}, keys[1].Correct)
	assert.Equal(t, 7.0, TotalMarks(keys))
}
