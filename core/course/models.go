package course

import (
	"math"
	"sort"
	"strconv"

	"github.com/edumvp/backend/core"
)

// Task types
const (
	TaskTypeText    = "text"
	TaskTypeNumeric = "numeric"
	TaskTypeSingle  = "single"
)

type Lesson struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Teacher     string   `json:"teacher"`      // username reference
	TeacherName string   `json:"teacher_name"` // denormalized display cache
	Video       string   `json:"video"`
	Materials   []string `json:"materials"`
	Homework    []string `json:"homework"` // task id references
	Order       int      `json:"order"`
}

type Course struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Lessons     []Lesson `json:"lessons"`
}

type Task struct {
	ID       string   `json:"id"`
	Subject  string   `json:"subject"`
	LessonID string   `json:"lesson_id,omitempty"` // weak reference
	Question string   `json:"question"`
	Answer   []string `json:"answer"` // accepted normalized answers
	Type     string   `json:"type"`
}

// state is the user-authored overlay persisted to the store; the seed lives
// in the embedded dataset and is never written.
type state struct {
	Courses map[string]Course `json:"courses"`
	Tasks   []Task            `json:"tasks"`
}

func defaultState() state {
	return state{Courses: make(map[string]Course)}
}

// CourseInput is the user-authored part of a Course for upserts.
type CourseInput struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Lessons     []Lesson `json:"lessons"`
}

// LessonInput is the user-authored part of a Lesson for upserts. A nil Order
// keeps the existing order or appends at the end; zero is a valid position.
type LessonInput struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Teacher     string   `json:"teacher"`
	TeacherName string   `json:"teacher_name"`
	Video       string   `json:"video"`
	Materials   []string `json:"materials"`
	Homework    []string `json:"homework"`
	Order       *int     `json:"order"`
}

// TaskInput is the user-authored part of a Task for upserts.
type TaskInput struct {
	ID       string   `json:"id"`
	Subject  string   `json:"subject"`
	LessonID string   `json:"lesson_id"`
	Question string   `json:"question"`
	Answer   []string `json:"answer"`
	Type     string   `json:"type"`
}

// AnswerResult is the outcome of a trainer answer check. Close is a hint
// only: the given answer was wrong but nearly matched an accepted one.
type AnswerResult struct {
	Correct bool `json:"correct"`
	Close   bool `json:"close"`
}

// sortLessons orders by (order asc, id asc); ids that are not numeric sort
// after numeric ones. The sort is stable so equal keys keep insertion order.
func sortLessons(lessons []Lesson) []Lesson {
	sorted := make([]Lesson, len(lessons))
	copy(sorted, lessons)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return lessonIDKey(sorted[i].ID) < lessonIDKey(sorted[j].ID)
	})
	return sorted
}

func lessonIDKey(id string) float64 {
	if n, err := strconv.Atoi(id); err == nil {
		return float64(n)
	}
	return math.MaxFloat64
}

func normalizeCourse(c Course) Course {
	c.Lessons = sortLessons(c.Lessons)
	return c
}

// normalizeAnswers trims each accepted answer and drops empty ones.
func normalizeAnswers(answers []string) []string {
	out := make([]string, 0, len(answers))
	for _, a := range answers {
		if a = core.CleanString(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func cloneCourse(c Course) Course {
	lessons := make([]Lesson, len(c.Lessons))
	copy(lessons, c.Lessons)
	for i := range lessons {
		lessons[i].Materials = append([]string(nil), lessons[i].Materials...)
		lessons[i].Homework = append([]string(nil), lessons[i].Homework...)
	}
	c.Lessons = lessons
	return c
}
