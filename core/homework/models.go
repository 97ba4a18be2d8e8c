package homework

import "time"

// Homework types mirror the assignment builder's modes.
const (
	TypeTest  = "test"  // structured questions only
	TypeOpen  = "open"  // free-form answer
	TypeMixed = "mixed" // both
)

// Submission lifecycle. Transitions are monotonic: a submission never moves
// back from submitted or graded.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusGraded    = "graded"
)

// Student is a roster entry. Email doubles as the account username, which is
// how submissions and notifications find the user record.
type Student struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Question is one structured item of a test/mixed homework. Answer holds the
// expected value used for auto-grading.
type Question struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Homework struct {
	ID          string     `json:"id"`
	CreatedBy   string     `json:"created_by"` // teacher username
	CreatedAt   time.Time  `json:"created_at"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	CourseID    string     `json:"course_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssignAll   bool       `json:"assign_all"`
	AssigneeIDs []string   `json:"assignee_ids,omitempty"`
	Content     string     `json:"content,omitempty"`
	Material    string     `json:"material,omitempty"`
	Questions   []Question `json:"questions,omitempty"`
}

type Submission struct {
	ID          string            `json:"id"`
	HomeworkID  string            `json:"homework_id"`
	StudentID   string            `json:"student_id"`
	Status      string            `json:"status"`
	Answers     map[string]string `json:"answers,omitempty"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
	Grade       string            `json:"grade,omitempty"`
	Feedback    string            `json:"feedback,omitempty"`
}

// NewHomework is the teacher-facing creation payload.
type NewHomework struct {
	Title       string     `json:"title" validate:"required"`
	Type        string     `json:"type"`
	CourseID    string     `json:"course_id"`
	DueDate     *time.Time `json:"due_date"`
	AssignAll   bool       `json:"assign_all"`
	AssigneeIDs []string   `json:"assignee_ids"`
	Content     string     `json:"content"`
	Material    string     `json:"material"`
	Questions   []Question `json:"questions"`
}

// state is the single persisted document backing the whole mock.
type state struct {
	Students        []Student           `json:"students"`
	TeacherStudents map[string][]string `json:"teacher_students"` // teacher username -> student ids
	Homeworks       []Homework          `json:"homeworks"`
	Submissions     []Submission        `json:"submissions"`
}

// seedStudents is the demo roster present on first load.
func seedStudents() []Student {
	return []Student{
		{ID: "student-1", Email: "anna@example.com", Name: "Анна Иванова"},
		{ID: "student-2", Email: "ivan@example.com", Name: "Иван Петров"},
	}
}
