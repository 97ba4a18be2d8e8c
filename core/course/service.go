package course

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/storage/kvstore"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrLessonNotFound = errors.New("lesson not found")
	ErrTaskNotFound   = errors.New("task not found")
)

// closeAnswerRatio is the similarity threshold above which a wrong trainer
// answer is reported as "close".
const closeAnswerRatio = 0.85

// Service owns the curriculum: a bundled immutable seed overlaid with
// user-authored courses and tasks. The overlay is merged over the seed on
// every read (patch wins by id) and every mutation publishes
// TopicCoursesUpdated so mounted consumers re-read.
type Service struct {
	store  kvstore.Store
	broker *core.Broker
	logger core.Logger

	seedCourses map[string]Course
	seedTasks   []Task

	mu sync.Mutex
}

func NewService(store kvstore.Store, broker *core.Broker, logger core.Logger) (*Service, error) {
	seedCourses, seedTasks, err := loadSeed()
	if err != nil {
		return nil, err
	}
	return &Service{
		store:       store,
		broker:      broker,
		logger:      logger,
		seedCourses: seedCourses,
		seedTasks:   seedTasks,
	}, nil
}

func (svc *Service) loadState() state {
	st := defaultState()
	if err := svc.store.Load(kvstore.KeyCoursesState, &st); err != nil {
		if err != kvstore.ErrKeyNotFound {
			svc.logger.Warn(fmt.Sprintf("loading courses state, falling back to empty: %v", err))
		}
		return defaultState()
	}
	if st.Courses == nil {
		st.Courses = make(map[string]Course)
	}
	return st
}

func (svc *Service) saveState(st state) error {
	if err := svc.store.Save(kvstore.KeyCoursesState, st); err != nil {
		return errors.Wrap(err, "saving courses state")
	}
	svc.broker.Publish(core.TopicCoursesUpdated)
	return nil
}

// mergeCourses produces the read view: cloned seed, overlay wins by id,
// every course's lessons re-sorted.
func (svc *Service) mergeCourses(st state) map[string]Course {
	merged := make(map[string]Course, len(svc.seedCourses)+len(st.Courses))
	for code, c := range svc.seedCourses {
		merged[code] = normalizeCourse(cloneCourse(c))
	}
	for code, c := range st.Courses {
		merged[code] = normalizeCourse(cloneCourse(c))
	}
	return merged
}

// mergeTasks produces seed ∪ overlay keyed by id; a custom task with a seed
// task's id overrides it entirely. Seed order first, then custom additions.
func (svc *Service) mergeTasks(st state) []Task {
	byID := make(map[string]int, len(svc.seedTasks))
	merged := make([]Task, 0, len(svc.seedTasks)+len(st.Tasks))
	for _, t := range svc.seedTasks {
		byID[t.ID] = len(merged)
		merged = append(merged, t)
	}
	for _, t := range st.Tasks {
		if i, ok := byID[t.ID]; ok {
			merged[i] = t
			continue
		}
		byID[t.ID] = len(merged)
		merged = append(merged, t)
	}
	return merged
}

func generateID(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}

// Courses returns the merged curriculum.
func (svc *Service) Courses() map[string]Course {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.mergeCourses(svc.loadState())
}

func (svc *Service) Course(courseID string) (Course, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.course(courseID)
}

func (svc *Service) course(courseID string) (Course, error) {
	c, ok := svc.mergeCourses(svc.loadState())[courseID]
	if !ok {
		return Course{}, ErrCourseNotFound
	}
	return c, nil
}

func (svc *Service) Lessons(courseID string) []Lesson {
	c, err := svc.Course(courseID)
	if err != nil {
		return nil
	}
	return c.Lessons
}

func (svc *Service) Lesson(courseID, lessonID string) (Lesson, error) {
	for _, l := range svc.Lessons(courseID) {
		if l.ID == lessonID {
			return l, nil
		}
	}
	return Lesson{}, ErrLessonNotFound
}

// UpsertCourse writes a course into the overlay, shadowing any seed course
// with the same id. Empty input fields keep the current values.
func (svc *Service) UpsertCourse(input CourseInput) (Course, error) {
	id := core.CleanString(input.ID)
	if id == "" {
		return Course{}, core.NewValidationError(nil,
			core.FieldError{Field: "id", Error: "this field is required"})
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	current := svc.mergeCourses(st)[id]

	next := current
	next.ID = id
	if title := core.CleanString(input.Title); title != "" {
		next.Title = title
	} else if next.Title == "" {
		next.Title = "Новый курс"
	}
	if input.Description != "" {
		next.Description = input.Description
	}
	if len(input.Lessons) > 0 {
		next.Lessons = input.Lessons
	}
	next = normalizeCourse(next)

	st.Courses[id] = next
	return next, svc.saveState(st)
}

// RemoveCourse drops the overlay record only; a shadowed seed course
// reappears after removal.
func (svc *Service) RemoveCourse(courseID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	delete(st.Courses, courseID)
	return svc.saveState(st)
}

// UpsertLesson creates or edits one lesson, keyed by id (generated when
// absent). The course is copied into the overlay on first write.
func (svc *Service) UpsertLesson(courseID string, input LessonInput) (Lesson, error) {
	if courseID == "" {
		return Lesson{}, ErrCourseNotFound
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	c, ok := svc.mergeCourses(st)[courseID]
	if !ok {
		c = Course{ID: courseID, Title: "Новый курс"}
	}

	idx := -1
	if input.ID != "" {
		for i, l := range c.Lessons {
			if l.ID == input.ID {
				idx = i
				break
			}
		}
	}

	next := Lesson{
		ID:          input.ID,
		Title:       core.CleanString(input.Title),
		Description: input.Description,
		Teacher:     input.Teacher,
		TeacherName: input.TeacherName,
		Video:       input.Video,
		Materials:   input.Materials,
		Homework:    input.Homework,
	}
	if next.ID == "" {
		next.ID = generateID("lesson")
	}
	if next.Title == "" {
		next.Title = "Новое занятие"
	}
	if next.Homework == nil && idx >= 0 {
		next.Homework = c.Lessons[idx].Homework
	}
	if input.Order != nil {
		next.Order = *input.Order
	} else if idx >= 0 {
		next.Order = c.Lessons[idx].Order
	} else {
		next.Order = len(c.Lessons) + 1
	}

	if idx >= 0 {
		c.Lessons[idx] = next
	} else {
		c.Lessons = append(c.Lessons, next)
	}
	c = normalizeCourse(c)

	st.Courses[courseID] = c
	return next, svc.saveState(st)
}

func (svc *Service) RemoveLesson(courseID, lessonID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	c, ok := svc.mergeCourses(st)[courseID]
	if !ok {
		return ErrCourseNotFound
	}

	kept := c.Lessons[:0]
	for _, l := range c.Lessons {
		if l.ID != lessonID {
			kept = append(kept, l)
		}
	}
	c.Lessons = kept

	st.Courses[courseID] = c
	return svc.saveState(st)
}

// Tasks returns the merged task bank.
func (svc *Service) Tasks() []Task {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.mergeTasks(svc.loadState())
}

func (svc *Service) Task(taskID string) (Task, error) {
	for _, t := range svc.Tasks() {
		if t.ID == taskID {
			return t, nil
		}
	}
	return Task{}, ErrTaskNotFound
}

// UpsertTask creates or edits one task; the answer set is trimmed and empty
// entries dropped. A custom task overrides a seed task sharing its id.
func (svc *Service) UpsertTask(input TaskInput) (Task, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	merged := svc.mergeTasks(st)

	id := input.ID
	if id == "" {
		id = generateID("task")
	}
	var current Task
	for _, t := range merged {
		if t.ID == id {
			current = t
			break
		}
	}

	next := Task{
		ID:       id,
		Subject:  input.Subject,
		LessonID: input.LessonID,
		Question: core.CleanString(input.Question),
		Answer:   normalizeAnswers(input.Answer),
		Type:     input.Type,
	}
	if next.Subject == "" {
		next.Subject = current.Subject
	}
	if next.LessonID == "" {
		next.LessonID = current.LessonID
	}
	if next.Question == "" {
		if next.Question = current.Question; next.Question == "" {
			next.Question = "Новое задание"
		}
	}
	if len(next.Answer) == 0 {
		next.Answer = normalizeAnswers(current.Answer)
	}
	if next.Type == "" {
		if next.Type = current.Type; next.Type == "" {
			next.Type = TaskTypeText
		}
	}

	// the overlay keeps custom tasks plus any record overriding a seed id
	idx := -1
	for i, t := range st.Tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		st.Tasks[idx] = next
	} else {
		st.Tasks = append(st.Tasks, next)
	}

	return next, svc.saveState(st)
}

// AttachTaskToLesson adds a task reference to the lesson's homework set.
func (svc *Service) AttachTaskToLesson(courseID, lessonID, taskID string) error {
	return svc.updateLessonHomework(courseID, lessonID, func(homework []string) []string {
		for _, id := range homework {
			if id == taskID {
				return homework // already attached
			}
		}
		return append(homework, taskID)
	})
}

func (svc *Service) DetachTaskFromLesson(courseID, lessonID, taskID string) error {
	return svc.updateLessonHomework(courseID, lessonID, func(homework []string) []string {
		kept := homework[:0]
		for _, id := range homework {
			if id != taskID {
				kept = append(kept, id)
			}
		}
		return kept
	})
}

func (svc *Service) updateLessonHomework(courseID, lessonID string, apply func([]string) []string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	st := svc.loadState()
	c, ok := svc.mergeCourses(st)[courseID]
	if !ok {
		return ErrCourseNotFound
	}
	idx := -1
	for i, l := range c.Lessons {
		if l.ID == lessonID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrLessonNotFound
	}

	c.Lessons[idx].Homework = apply(c.Lessons[idx].Homework)
	st.Courses[courseID] = c
	return svc.saveState(st)
}

// LessonTasks resolves a lesson's homework references against the task bank.
func (svc *Service) LessonTasks(courseID, lessonID string) ([]Task, error) {
	lesson, err := svc.Lesson(courseID, lessonID)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]bool, len(lesson.Homework))
	for _, id := range lesson.Homework {
		refs[id] = true
	}

	var tasks []Task
	for _, t := range svc.Tasks() {
		if refs[t.ID] {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// CheckAnswer compares a trainer answer against the task's accepted set,
// case-insensitively on trimmed strings. A wrong answer very similar to an
// accepted one is flagged Close as a hint.
func (svc *Service) CheckAnswer(taskID, answer string) (AnswerResult, error) {
	task, err := svc.Task(taskID)
	if err != nil {
		return AnswerResult{}, err
	}

	given := core.CleanString(answer, true /* lower */)
	var res AnswerResult
	for _, accepted := range task.Answer {
		want := core.CleanString(accepted, true /* lower */)
		if given == want {
			return AnswerResult{Correct: true}, nil
		}
		if similarity(given, want) >= closeAnswerRatio {
			res.Close = true
		}
	}
	return res, nil
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).QuickRatio()
}
