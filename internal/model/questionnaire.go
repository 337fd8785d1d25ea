package model

import "time"

// Questionnaire is the intake form of a client.  There is at most one row per
// user; every submission replaces the previous answers.
type Questionnaire struct {
	UserID string `json:"user_id"`
	Height string `json:"height"`
	Weight string `json:"weight"`
	Age    int    `json:"age"`

	Allergies            *string `json:"allergies"`
	ProgramGoal          *string `json:"program_goal"`
	BodyImprovement      *string `json:"body_improvement"`
	MedicalIssues        *string `json:"medical_issues"`
	TakesMedications     *string `json:"takes_medications"`
	PregnantOrPostpartum *string `json:"pregnant_or_postpartum"`
	MenopauseSymptoms    *string `json:"menopause_symptoms"`
	BreakfastRegular     *string `json:"breakfast_regular"`
	DigestionIssues      *string `json:"digestion_issues"`
	SnackingBetweenMeals *string `json:"snacking_between_meals"`
	OrganizedEating      *string `json:"organized_eating"`
	AvoidFoodGroups      *string `json:"avoid_food_groups"`
	WaterIntake          *string `json:"water_intake"`
	DietType             *string `json:"diet_type"`
	RegularActivity      *string `json:"regular_activity"`
	TrainingPlace        *string `json:"training_place"`
	TrainingFrequency    *string `json:"training_frequency"`
	ActivityType         *string `json:"activity_type"`
	BodyFeeling          *string `json:"body_feeling"`
	SleepHours           *string `json:"sleep_hours"`

	SubmittedAt time.Time `json:"submitted_at"`
}

// OptionalAnswers returns pointers to the free-text answers in column order.
// Repositories use it to bind and scan the optional columns.
func (q *Questionnaire) OptionalAnswers() []**string {
	return []**string{
		&q.Allergies, &q.ProgramGoal, &q.BodyImprovement, &q.MedicalIssues,
		&q.TakesMedications, &q.PregnantOrPostpartum, &q.MenopauseSymptoms,
		&q.BreakfastRegular, &q.DigestionIssues, &q.SnackingBetweenMeals,
		&q.OrganizedEating, &q.AvoidFoodGroups, &q.WaterIntake, &q.DietType,
		&q.RegularActivity, &q.TrainingPlace, &q.TrainingFrequency,
		&q.ActivityType, &q.BodyFeeling, &q.SleepHours,
	}
}

// OptionalColumns lists the column names matching OptionalAnswers.
var OptionalColumns = []string{
	"allergies", "program_goal", "body_improvement", "medical_issues",
	"takes_medications", "pregnant_or_postpartum", "menopause_symptoms",
	"breakfast_regular", "digestion_issues", "snacking_between_meals",
	"organized_eating", "avoid_food_groups", "water_intake", "diet_type",
	"regular_activity", "training_place", "training_frequency",
	"activity_type", "body_feeling", "sleep_hours",
}
