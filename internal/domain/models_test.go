package domain

import (
	"errors"
	"testing"
)

func validDefinition() QuizDefinition {
	return QuizDefinition{
		Title: "Geography",
		Questions: []Question{
			{Text: "q1", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1, Points: 20},
			{Text: "q2", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 3},
		},
		TimePerQuestion: 30,
		MaxPlayers:      10,
	}
}

func TestValidateAcceptsWellFormedQuiz(t *testing.T) {
	if err := Validate(validDefinition(), RewardPolicy{Kind: RewardCertificate}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	noTitle := validDefinition()
	noTitle.Title = ""

	noQuestions := validDefinition()
	noQuestions.Questions = nil

	threeOptions := validDefinition()
	threeOptions.Questions[0].Options = []string{"a", "b", "c"}

	badIndex := validDefinition()
	badIndex.Questions[1].CorrectIndex = 4

	negativeTime := validDefinition()
	negativeTime.TimePerQuestion = -1

	cases := []struct {
		name   string
		def    QuizDefinition
		policy RewardPolicy
	}{
		{"missing title", noTitle, RewardPolicy{}},
		{"no questions", noQuestions, RewardPolicy{}},
		{"three options", threeOptions, RewardPolicy{}},
		{"correct index out of range", badIndex, RewardPolicy{}},
		{"negative time per question", negativeTime, RewardPolicy{}},
		{"manual split under 100", validDefinition(), RewardPolicy{Kind: RewardToken, Rule: SplitManual, PoolAmount: 100, Percentages: []int{50, 40}}},
		{"manual split over 100", validDefinition(), RewardPolicy{Kind: RewardToken, Rule: SplitManual, PoolAmount: 100, Percentages: []int{60, 50}}},
	}
	for _, tc := range cases {
		if err := Validate(tc.def, tc.policy); !errors.Is(err, ErrInvalidQuiz) {
			t.Errorf("%s: expected ErrInvalidQuiz, got %v", tc.name, err)
		}
	}
}

func TestAwardedPointsDefaults(t *testing.T) {
	q := Question{Points: 0}
	if got := q.AwardedPoints(); got != DefaultQuestionPoints {
		t.Fatalf("expected default %d, got %d", DefaultQuestionPoints, got)
	}
	q.Points = 25
	if got := q.AwardedPoints(); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
}

func TestTotalPoints(t *testing.T) {
	def := validDefinition()
	if got := def.TotalPoints(); got != 30 {
		t.Fatalf("expected 30 total points, got %d", got)
	}
}

func TestSplitPercentages(t *testing.T) {
	top3 := RewardPolicy{Kind: RewardToken, Rule: SplitTop3, PoolAmount: 100}
	got := top3.SplitPercentages()
	if len(got) != 3 || got[0] != 50 || got[1] != 30 || got[2] != 20 {
		t.Fatalf("unexpected top3 percentages %v", got)
	}

	manual := RewardPolicy{Kind: RewardToken, Rule: SplitManual, PoolAmount: 100, Percentages: []int{80, 20}}
	got = manual.SplitPercentages()
	if len(got) != 2 || got[0] != 80 {
		t.Fatalf("unexpected manual percentages %v", got)
	}
}

func TestHasPool(t *testing.T) {
	if (RewardPolicy{Kind: RewardCertificate, PoolAmount: 100}).HasPool() {
		t.Fatal("certificate-only policy must not have a pool")
	}
	if (RewardPolicy{Kind: RewardToken}).HasPool() {
		t.Fatal("zero pool must not count")
	}
	if !(RewardPolicy{Kind: RewardBoth, PoolAmount: 1}).HasPool() {
		t.Fatal("token pool expected")
	}
}
