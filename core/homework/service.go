package homework

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/core/course"
	"github.com/edumvp/backend/core/user"
	"github.com/edumvp/backend/storage/kvstore"
)

var (
	ErrHomeworkNotFound   = errors.New("homework not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrNotOwner           = errors.New("homework belongs to another teacher")
)

// Notifier delivers in-app notifications. *user.Service satisfies it.
type Notifier interface {
	AddNotification(username string, n user.NewNotification) (user.Notification, error)
}

// CourseCatalog exposes the merged course set. *course.Service satisfies it.
type CourseCatalog interface {
	Courses() map[string]course.Course
}

// Service is the homework mock API. All state lives in one document; the
// overdue-notification dedup set is kept under a separate key so clearing
// homework state does not re-fire old notifications.
type Service struct {
	store    kvstore.Store
	notifier Notifier
	catalog  CourseCatalog
	logger   core.Logger

	mu  sync.Mutex
	now func() time.Time // mockable
}

func NewService(store kvstore.Store, notifier Notifier, catalog CourseCatalog, logger core.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		catalog:  catalog,
		logger:   logger,
		now:      time.Now,
	}
}

func (svc *Service) loadState() state {
	var st state
	if err := svc.store.Load(kvstore.KeyHomeworkState, &st); err != nil && err != kvstore.ErrKeyNotFound {
		svc.logger.Warn(fmt.Sprintf("loading homework state, falling back to empty: %v", err))
	}
	if len(st.Students) == 0 {
		st.Students = seedStudents()
	}
	if st.TeacherStudents == nil {
		st.TeacherStudents = make(map[string][]string)
	}
	return st
}

func (svc *Service) saveState(st state) error {
	return errors.Wrap(svc.store.Save(kvstore.KeyHomeworkState, st), "saving homework state")
}

func generateID(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}

// ListStudents returns the full roster.
func (svc *Service) ListStudents() []Student {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.loadState().Students
}

// ListTeacherStudents returns a teacher's own student group, roster order.
func (svc *Service) ListTeacherStudents(teacher string) []Student {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	ids := make(map[string]bool, len(st.TeacherStudents[teacher]))
	for _, id := range st.TeacherStudents[teacher] {
		ids[id] = true
	}
	var students []Student
	for _, s := range st.Students {
		if ids[s.ID] {
			students = append(students, s)
		}
	}
	return students
}

// AddStudentToTeacher adds a student to a teacher's group. An existing roster
// entry with the same email is reused instead of duplicated.
func (svc *Service) AddStudentToTeacher(teacher, email, name string) (Student, error) {
	email = core.CleanString(email, true)
	if teacher == "" || email == "" {
		return Student{}, ErrStudentNotFound
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	var student Student
	for _, s := range st.Students {
		if strings.EqualFold(s.Email, email) {
			student = s
			break
		}
	}
	if student.ID == "" {
		student = Student{ID: generateID("student"), Email: email, Name: name}
		st.Students = append(st.Students, student)
	}

	for _, id := range st.TeacherStudents[teacher] {
		if id == student.ID {
			return student, nil
		}
	}
	st.TeacherStudents[teacher] = append(st.TeacherStudents[teacher], student.ID)
	return student, svc.saveState(st)
}

// RemoveStudentFromTeacher detaches a student from the teacher's group. The
// roster entry itself stays.
func (svc *Service) RemoveStudentFromTeacher(teacher, studentID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	ids := st.TeacherStudents[teacher]
	kept := ids[:0]
	for _, id := range ids {
		if id != studentID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(ids) {
		return nil
	}
	st.TeacherStudents[teacher] = kept
	return svc.saveState(st)
}

// CreateHomework records a new assignment owned by the teacher.
func (svc *Service) CreateHomework(teacher string, nh NewHomework) (Homework, error) {
	if nh.Type == "" {
		nh.Type = TypeTest
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	hw := Homework{
		ID:          generateID("hw"),
		CreatedBy:   teacher,
		CreatedAt:   svc.now().UTC(),
		Title:       nh.Title,
		Type:        nh.Type,
		CourseID:    nh.CourseID,
		DueDate:     nh.DueDate,
		AssignAll:   nh.AssignAll,
		AssigneeIDs: nh.AssigneeIDs,
		Content:     nh.Content,
		Material:    nh.Material,
		Questions:   nh.Questions,
	}
	st := svc.loadState()
	st.Homeworks = append(st.Homeworks, hw)
	return hw, svc.saveState(st)
}

// DeleteHomework removes an assignment and its submissions. Only the creator
// may delete it.
func (svc *Service) DeleteHomework(teacher, homeworkID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	idx := -1
	for i, hw := range st.Homeworks {
		if hw.ID == homeworkID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrHomeworkNotFound
	}
	if st.Homeworks[idx].CreatedBy != teacher {
		return ErrNotOwner
	}
	st.Homeworks = append(st.Homeworks[:idx], st.Homeworks[idx+1:]...)

	kept := st.Submissions[:0]
	for _, sub := range st.Submissions {
		if sub.HomeworkID != homeworkID {
			kept = append(kept, sub)
		}
	}
	st.Submissions = kept
	return svc.saveState(st)
}

// ListTeacherHomeworks returns the teacher's own assignments.
func (svc *Service) ListTeacherHomeworks(teacher string) []Homework {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var out []Homework
	for _, hw := range svc.loadState().Homeworks {
		if hw.CreatedBy == teacher {
			out = append(out, hw)
		}
	}
	return out
}

// ListStudentHomeworks returns assignments visible to the student (assigned
// to everyone, or to the student's roster id). Listing doubles as the
// overdue scan: each newly-overdue unsubmitted assignment fires exactly one
// notification.
func (svc *Service) ListStudentHomeworks(studentUsername string) ([]Homework, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	student, ok := studentByEmail(st, studentUsername)
	if !ok {
		return nil, ErrStudentNotFound
	}

	var out []Homework
	for _, hw := range st.Homeworks {
		if hw.AssignAll || containsID(hw.AssigneeIDs, student.ID) {
			out = append(out, hw)
		}
	}
	svc.notifyOverdue(st, student, out)
	return out, nil
}

// notifyOverdue sends the at-most-once overdue notification for each listed
// assignment past its due date with no submitted work. Callers hold the
// mutex.
func (svc *Service) notifyOverdue(st state, student Student, hws []Homework) {
	now := svc.now()
	notified := make(map[string]bool)
	svc.loadNotified(&notified)

	changed := false
	for _, hw := range hws {
		if hw.DueDate == nil || !hw.DueDate.Before(now) {
			continue
		}
		if sub, ok := findSubmission(st, hw.ID, student.ID); ok && sub.Status != StatusDraft {
			continue
		}
		key := hw.ID + "|" + student.ID
		if notified[key] {
			continue
		}
		notified[key] = true
		changed = true
		if svc.notifier != nil {
			_, err := svc.notifier.AddNotification(student.Email, user.NewNotification{
				Text:  fmt.Sprintf("Задание %q просрочено", hw.Title),
				Emoji: "⏰",
				Link:  "/homework/" + hw.ID,
			})
			if err != nil {
				svc.logger.Warn(fmt.Sprintf("sending overdue notification: %v", err))
			}
		}
	}
	if changed {
		if err := svc.store.Save(kvstore.KeyHomeworkNotify, notified); err != nil {
			svc.logger.Warn(fmt.Sprintf("saving overdue notification state: %v", err))
		}
	}
}

func (svc *Service) loadNotified(dst *map[string]bool) {
	if err := svc.store.Load(kvstore.KeyHomeworkNotify, dst); err != nil && err != kvstore.ErrKeyNotFound {
		svc.logger.Warn(fmt.Sprintf("loading overdue notification state: %v", err))
	}
}

func (svc *Service) HomeworkByID(homeworkID string) (Homework, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, hw := range svc.loadState().Homeworks {
		if hw.ID == homeworkID {
			return hw, nil
		}
	}
	return Homework{}, ErrHomeworkNotFound
}

// Submission returns the student's record for an assignment, if any.
func (svc *Service) Submission(homeworkID, studentUsername string) (Submission, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	student, ok := studentByEmail(st, studentUsername)
	if !ok {
		return Submission{}, ErrStudentNotFound
	}
	sub, ok := findSubmission(st, homeworkID, student.ID)
	if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	return sub, nil
}

// SaveDraft stores work in progress. Once submitted or graded the record is
// locked and returned unchanged.
func (svc *Service) SaveDraft(homeworkID, studentUsername string, answers map[string]string) (Submission, error) {
	return svc.writeSubmission(homeworkID, studentUsername, answers, false)
}

// Submit finalizes the student's work and auto-grades structured questions.
// Submitting twice is a no-op returning the existing record.
func (svc *Service) Submit(homeworkID, studentUsername string, answers map[string]string) (Submission, error) {
	return svc.writeSubmission(homeworkID, studentUsername, answers, true)
}

func (svc *Service) writeSubmission(homeworkID, studentUsername string, answers map[string]string, final bool) (Submission, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	student, ok := studentByEmail(st, studentUsername)
	if !ok {
		return Submission{}, ErrStudentNotFound
	}
	var hw Homework
	hwFound := false
	for _, h := range st.Homeworks {
		if h.ID == homeworkID {
			hw, hwFound = h, true
			break
		}
	}
	if !hwFound {
		return Submission{}, ErrHomeworkNotFound
	}

	sub, exists := findSubmission(st, homeworkID, student.ID)
	if exists && sub.Status != StatusDraft {
		return sub, nil
	}
	if !exists {
		sub = Submission{
			ID:         generateID("sub"),
			HomeworkID: homeworkID,
			StudentID:  student.ID,
			Status:     StatusDraft,
		}
	}
	sub.Answers = answers
	if final {
		sub.Status = StatusSubmitted
		at := svc.now().UTC()
		sub.SubmittedAt = &at
		if len(hw.Questions) > 0 {
			sub.Grade = autoGrade(hw.Questions, answers)
		}
	}

	// one record per (homework, student): drop any previous one, then append
	kept := st.Submissions[:0]
	for _, s := range st.Submissions {
		if !(s.HomeworkID == homeworkID && s.StudentID == student.ID) {
			kept = append(kept, s)
		}
	}
	st.Submissions = append(kept, sub)
	return sub, svc.saveState(st)
}

// autoGrade scores structured questions by case-insensitive trimmed equality.
func autoGrade(questions []Question, answers map[string]string) string {
	correct := 0
	for _, q := range questions {
		if strings.EqualFold(strings.TrimSpace(answers[q.ID]), strings.TrimSpace(q.Answer)) {
			correct++
		}
	}
	return fmt.Sprintf("%d/%d", correct, len(questions))
}

// SubmissionsByHomework returns all submissions for one assignment.
func (svc *Service) SubmissionsByHomework(homeworkID string) []Submission {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var out []Submission
	for _, sub := range svc.loadState().Submissions {
		if sub.HomeworkID == homeworkID {
			out = append(out, sub)
		}
	}
	return out
}

// SubmissionsByStudent returns all of one student's submissions.
func (svc *Service) SubmissionsByStudent(studentUsername string) ([]Submission, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	student, ok := studentByEmail(st, studentUsername)
	if !ok {
		return nil, ErrStudentNotFound
	}
	var out []Submission
	for _, sub := range st.Submissions {
		if sub.StudentID == student.ID {
			out = append(out, sub)
		}
	}
	return out, nil
}

// AddFeedback attaches the teacher's comment, marks the submission graded
// and notifies the student with a deep link to the assignment.
func (svc *Service) AddFeedback(submissionID, feedback string) (Submission, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	for i, sub := range st.Submissions {
		if sub.ID != submissionID {
			continue
		}
		sub.Feedback = feedback
		sub.Status = StatusGraded
		st.Submissions[i] = sub
		if err := svc.saveState(st); err != nil {
			return Submission{}, err
		}
		svc.notifyFeedback(st, sub)
		return sub, nil
	}
	return Submission{}, ErrSubmissionNotFound
}

func (svc *Service) notifyFeedback(st state, sub Submission) {
	if svc.notifier == nil {
		return
	}
	student, ok := studentByID(st, sub.StudentID)
	if !ok {
		return
	}
	title := sub.HomeworkID
	for _, hw := range st.Homeworks {
		if hw.ID == sub.HomeworkID {
			title = hw.Title
			break
		}
	}
	_, err := svc.notifier.AddNotification(student.Email, user.NewNotification{
		Text:  fmt.Sprintf("Новый комментарий по заданию %q", title),
		Emoji: "💬",
		Link:  "/homework/" + sub.HomeworkID,
	})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("sending feedback notification: %v", err))
	}
}

// ListCourses returns courses the access map grants, keyed lookup against
// the merged catalog.
func (svc *Service) ListCourses(access map[string]user.AccessGrant) []course.Course {
	if svc.catalog == nil {
		return nil
	}
	var out []course.Course
	for id, c := range svc.catalog.Courses() {
		if access[id].Enabled {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func studentByEmail(st state, email string) (Student, bool) {
	for _, s := range st.Students {
		if strings.EqualFold(s.Email, email) {
			return s, true
		}
	}
	return Student{}, false
}

func studentByID(st state, id string) (Student, bool) {
	for _, s := range st.Students {
		if s.ID == id {
			return s, true
		}
	}
	return Student{}, false
}

func findSubmission(st state, homeworkID, studentID string) (Submission, bool) {
	for _, sub := range st.Submissions {
		if sub.HomeworkID == homeworkID && sub.StudentID == studentID {
			return sub, true
		}
	}
	return Submission{}, false
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
