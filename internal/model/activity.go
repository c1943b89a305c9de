package model

import "strings"

// Category groups activities for display.
type Category string

const (
	CategorySocial        Category = "social"
	CategoryWork          Category = "work"
	CategoryFitness       Category = "fitness"
	CategoryEntertainment Category = "entertainment"
	CategoryEducation     Category = "education"
	CategoryHealth        Category = "health"
	CategoryFood          Category = "food"
	CategoryTravel        Category = "travel"
	CategoryOther         Category = "other"
)

var categoryEmoji = map[Category]string{
	CategorySocial:        "👥",
	CategoryWork:          "💼",
	CategoryFitness:       "💪",
	CategoryEntertainment: "🎬",
	CategoryEducation:     "📚",
	CategoryHealth:        "🏥",
	CategoryFood:          "🍕",
	CategoryTravel:        "✈️",
	CategoryOther:         "📅",
}

var categoryAliases = map[string]Category{
	"social": CategorySocial, "socializing": CategorySocial, "hangout": CategorySocial,
	"work": CategoryWork, "business": CategoryWork, "meeting": CategoryWork, "professional": CategoryWork,
	"fitness": CategoryFitness, "exercise": CategoryFitness, "workout": CategoryFitness, "gym": CategoryFitness, "sports": CategoryFitness,
	"entertainment": CategoryEntertainment, "fun": CategoryEntertainment, "games": CategoryEntertainment, "gaming": CategoryEntertainment,
	"education": CategoryEducation, "learning": CategoryEducation, "study": CategoryEducation, "academic": CategoryEducation,
	"health": CategoryHealth, "medical": CategoryHealth, "wellness": CategoryHealth, "doctor": CategoryHealth,
	"food": CategoryFood, "dining": CategoryFood, "restaurant": CategoryFood, "meal": CategoryFood, "eating": CategoryFood,
	"travel": CategoryTravel, "trip": CategoryTravel, "vacation": CategoryTravel, "adventure": CategoryTravel,
	"other": CategoryOther,
}

// ParseCategory maps free-form category text (including common aliases) to a
// Category. The second result is false when the text was not recognised and
// CategoryOther was substituted.
func ParseCategory(s string) (Category, bool) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return CategoryOther, false
	}
	return c, true
}

// Emoji returns the display glyph for c.
func (c Category) Emoji() string {
	if e, ok := categoryEmoji[c]; ok {
		return e
	}
	return categoryEmoji[CategoryOther]
}

// Activity is a template the user picks to start planning.
type Activity struct {
	ID              string   `yaml:"id" json:"id"`
	Title           string   `yaml:"title" json:"title"`
	Description     string   `yaml:"description" json:"description"`
	Category        Category `yaml:"category" json:"category"`
	DurationMinutes int      `yaml:"duration_minutes" json:"duration_minutes"`
	// SuggestedTimes are coarse hints such as "morning" or "evening".
	SuggestedTimes []string `yaml:"suggested_times,omitempty" json:"suggested_times,omitempty"`
	Location       string   `yaml:"location,omitempty" json:"location,omitempty"`
	Emoji          string   `yaml:"emoji,omitempty" json:"emoji,omitempty"`
	Custom         bool     `yaml:"custom" json:"custom"`
}

// DefaultActivities is the built-in catalog used when no remote catalog is
// configured or reachable.
func DefaultActivities() []Activity {
	return []Activity{
		{ID: "1", Title: "Coffee Chat", Description: "Casual catch-up over coffee", Category: CategorySocial, DurationMinutes: 60, SuggestedTimes: []string{"morning", "afternoon"}, Location: "Local Coffee Shop", Emoji: "☕️"},
		{ID: "2", Title: "Workout Session", Description: "Group fitness or gym session", Category: CategoryFitness, DurationMinutes: 90, SuggestedTimes: []string{"morning", "evening"}, Location: "Gym or Park", Emoji: "💪"},
		{ID: "3", Title: "Study Group", Description: "Collaborative learning session", Category: CategoryEducation, DurationMinutes: 120, SuggestedTimes: []string{"afternoon", "evening"}, Location: "Library or Home", Emoji: "📚"},
		{ID: "4", Title: "Game Night", Description: "Board games and fun activities", Category: CategoryEntertainment, DurationMinutes: 180, SuggestedTimes: []string{"evening"}, Location: "Home", Emoji: "🎲"},
		{ID: "5", Title: "Dinner Out", Description: "Restaurant meal with friends", Category: CategoryFood, DurationMinutes: 120, SuggestedTimes: []string{"evening"}, Location: "Restaurant", Emoji: "🍽️"},
		{ID: "6", Title: "Team Meeting", Description: "Work collaboration and planning", Category: CategoryWork, DurationMinutes: 60, SuggestedTimes: []string{"morning", "afternoon"}, Location: "Office or Virtual", Emoji: "💼"},
		{ID: "7", Title: "Doctor Visit", Description: "Health checkup or consultation", Category: CategoryHealth, DurationMinutes: 45, SuggestedTimes: []string{"morning", "afternoon"}, Location: "Medical Center", Emoji: "🏥"},
		{ID: "8", Title: "Weekend Trip", Description: "Short getaway or travel adventure", Category: CategoryTravel, DurationMinutes: 480, SuggestedTimes: []string{"morning"}, Location: "Various", Emoji: "✈️"},
	}
}
