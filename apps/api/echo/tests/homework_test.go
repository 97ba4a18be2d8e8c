package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/edumvp/backend/apps/api/echo"
	"github.com/edumvp/backend/core/homework"
	"github.com/edumvp/backend/core/user"
	testutil "github.com/edumvp/backend/tests"
)

func seededRoster() []homework.Student {
	return []homework.Student{
		{ID: "student-1", Email: "anna@example.com", Name: "Анна Иванова"},
		{ID: "student-2", Email: "ivan@example.com", Name: "Иван Петров"},
	}
}

func Test_homeworkApi_allStudents(t *testing.T) {
	resetState(t)

	student := testutil.CreateUser(t, usrSvc, "hero@example.com", "LolCat123", "Геро", "Иванов", user.RoleStudent)
	teacher := testutil.CreateUser(t, usrSvc, "prof@example.com", "LolCat123", "Проф", "Петров", user.RoleTeacher)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Teacher required", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Get roster", token: getToken(t, teacher), wantCode: http.StatusOK, wantData: marchallObj(t, seededRoster())},
		{name: "Admin also allowed", token: getToken(t, getAdmin(t)), wantCode: http.StatusOK, wantData: marchallObj(t, seededRoster())},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/homework/teacher/students"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_homeworkApi_myStudents(t *testing.T) {
	resetState(t)

	teacher := testutil.CreateUser(t, usrSvc, "prof@example.com", "LolCat123", "Проф", "Петров", user.RoleTeacher)
	token := getToken(t, teacher)

	// empty group at first
	req, rec := newAuthRequest(http.MethodGet, "/v1/homework/teacher/my-students", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)

	// validation
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required"}),
		},
		{
			name: "invalid email", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.AddStudentRequest{Email: "lol"}),
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "existing roster entry reused", wantCode: http.StatusCreated,
			body:     marchallObj(t, echoapi.AddStudentRequest{Email: "ANNA@example.com", Name: "Анна"}),
			wantData: marchallObj(t, seededRoster()[0]),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/homework/teacher/my-students"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// a new email extends the roster
	req, rec = newAuthRequest(http.MethodPost, "/v1/homework/teacher/my-students", token,
		marchallObj(t, echoapi.AddStudentRequest{Email: "olga@example.com", Name: "Ольга Смирнова"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusCreated)
	}
	var added homework.Student
	if err := json.Unmarshal(rec.Body.Bytes(), &added); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if added.ID == "" || added.ID == "student-1" || added.ID == "student-2" {
		t.Errorf("failed! id = %v; want a fresh roster id", added.ID)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/homework/teacher/my-students", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, seededRoster()[0], added)}, rec)

	// detach
	req, rec = newAuthRequest(http.MethodDelete, "/v1/homework/teacher/my-students/"+added.ID, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/homework/teacher/my-students", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, seededRoster()[0])}, rec)
}

func Test_homeworkApi_homeworks(t *testing.T) {
	resetState(t)

	teacher := testutil.CreateUser(t, usrSvc, "prof@example.com", "LolCat123", "Проф", "Петров", user.RoleTeacher)
	rival := testutil.CreateUser(t, usrSvc, "rival@example.com", "LolCat123", "Соперник", "Сидоров", user.RoleTeacher)
	token := getToken(t, teacher)

	// validation
	req, rec := newAuthRequest(http.MethodPost, "/v1/homework/teacher/homeworks", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
	}, rec)

	// create
	req, rec = newAuthRequest(http.MethodPost, "/v1/homework/teacher/homeworks", token,
		marchallObj(t, homework.NewHomework{Title: "Домашка 1", AssignAll: true}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusCreated)
	}
	var hw homework.Homework
	if err := json.Unmarshal(rec.Body.Bytes(), &hw); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if hw.ID == "" {
		t.Error("failed! empty homework id")
	}
	if hw.Type != homework.TypeTest {
		t.Errorf("failed! type = %v; want %v", hw.Type, homework.TypeTest)
	}
	if hw.CreatedBy != teacher.Username {
		t.Errorf("failed! created_by = %v; want %v", hw.CreatedBy, teacher.Username)
	}

	// own list
	req, rec = newAuthRequest(http.MethodGet, "/v1/homework/teacher/homeworks", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, hw)}, rec)

	// another teacher sees none of it and cannot delete it
	rivalToken := getToken(t, rival)
	req, rec = newAuthRequest(http.MethodGet, "/v1/homework/teacher/homeworks", rivalToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/homework/teacher/homeworks/"+hw.ID, rivalToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)

	// assigned-to-all shows up for a roster student
	anna := user.User{Username: "anna@example.com", Email: "anna@example.com", Role: user.RoleStudent}
	req, rec = newAuthRequest(http.MethodGet, "/v1/homework", getToken(t, anna))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, hw)}, rec)

	// a user outside the roster gets an empty list, not an error
	outsider := testutil.CreateUser(t, usrSvc, "hero@example.com", "LolCat123", "Геро", "Иванов", user.RoleStudent)
	req, rec = newAuthRequest(http.MethodGet, "/v1/homework", getToken(t, outsider))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)

	// owner deletes
	req, rec = newAuthRequest(http.MethodDelete, "/v1/homework/teacher/homeworks/"+hw.ID, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/homework/"+hw.ID, token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
}

func Test_homeworkApi_submitFlow(t *testing.T) {
	resetState(t)

	teacher := testutil.CreateUser(t, usrSvc, "prof@example.com", "LolCat123", "Проф", "Петров", user.RoleTeacher)
	anna := testutil.CreateUser(t, usrSvc, "anna@example.com", "LolCat123", "Анна", "Иванова", user.RoleStudent)
	teacherToken := getToken(t, teacher)
	annaToken := getToken(t, anna)

	hw, err := hwSvc.CreateHomework(teacher.Username, homework.NewHomework{
		Title:     "Контрольная",
		AssignAll: true,
		Questions: []homework.Question{
			{ID: "q1", Question: "2+2?", Answer: "4"},
			{ID: "q2", Question: "Столица России?", Answer: "Москва"},
		},
	})
	if err != nil {
		t.Fatalf("CreateHomework(): %v", err)
	}

	// no submission yet
	req, rec := newAuthRequest(http.MethodGet, "/v1/homework/"+hw.ID+"/submission", annaToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)

	// draft
	req, rec = newAuthRequest(http.MethodPut, "/v1/homework/"+hw.ID+"/draft", annaToken,
		marchallObj(t, echoapi.SubmissionRequest{Answers: map[string]string{"q1": "4"}}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
	var draft homework.Submission
	if err := json.Unmarshal(rec.Body.Bytes(), &draft); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if draft.Status != homework.StatusDraft {
		t.Errorf("failed! status = %v; want %v", draft.Status, homework.StatusDraft)
	}

	// submit with one wrong answer
	req, rec = newAuthRequest(http.MethodPost, "/v1/homework/"+hw.ID+"/submit", annaToken,
		marchallObj(t, echoapi.SubmissionRequest{Answers: map[string]string{"q1": "4", "q2": "Питер"}}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
	var sub homework.Submission
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if sub.ID != draft.ID {
		t.Errorf("failed! submission id changed: %v -> %v", draft.ID, sub.ID)
	}
	if sub.Status != homework.StatusSubmitted {
		t.Errorf("failed! status = %v; want %v", sub.Status, homework.StatusSubmitted)
	}
	if sub.Grade != "1/2" {
		t.Errorf("failed! grade = %v; want 1/2", sub.Grade)
	}

	// submitting again returns the locked record unchanged
	req, rec = newAuthRequest(http.MethodPost, "/v1/homework/"+hw.ID+"/submit", annaToken,
		marchallObj(t, echoapi.SubmissionRequest{Answers: map[string]string{"q1": "0", "q2": "0"}}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, sub)}, rec)

	// teacher reviews
	req, rec = newAuthRequest(http.MethodGet, "/v1/homework/teacher/homeworks/"+hw.ID+"/submissions", teacherToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, sub)}, rec)

	req, rec = newAuthRequest(http.MethodPost, "/v1/homework/teacher/submissions/"+sub.ID+"/feedback", teacherToken,
		marchallObj(t, echoapi.FeedbackRequest{Feedback: "Повтори столицы"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
	var graded homework.Submission
	if err := json.Unmarshal(rec.Body.Bytes(), &graded); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if graded.Status != homework.StatusGraded {
		t.Errorf("failed! status = %v; want %v", graded.Status, homework.StatusGraded)
	}
	if graded.Feedback != "Повтори столицы" {
		t.Errorf("failed! feedback = %v; want Повтори столицы", graded.Feedback)
	}

	// the student is notified about the feedback
	notifs := usrSvc.Notifications(anna.Username)
	if len(notifs) != 1 {
		t.Fatalf("failed! len(notifications) = %d; want 1", len(notifs))
	}
	if notifs[0].Link != "/homework/"+hw.ID {
		t.Errorf("failed! link = %v; want /homework/%v", notifs[0].Link, hw.ID)
	}

	// and sees it in the own-submissions list
	req, rec = newAuthRequest(http.MethodGet, "/v1/homework/my-submissions", annaToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, graded)}, rec)
}

func Test_homeworkApi_studentCourses(t *testing.T) {
	resetState(t)

	student := testutil.CreateUser(t, usrSvc, "hero@example.com", "LolCat123", "Геро", "Иванов", user.RoleStudent)
	token := getToken(t, student)

	// no access grants yet
	req, rec := newAuthRequest(http.MethodGet, "/v1/homework/courses", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)

	if _, err := usrSvc.SetAccess(student.Username, map[string]user.AccessGrant{"math": {Enabled: true}}); err != nil {
		t.Fatalf("SetAccess(): %v", err)
	}
	mathCourse, err := courseSvc.Course("math")
	if err != nil {
		t.Fatalf("Course(): %v", err)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/homework/courses", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, mathCourse)}, rec)
}
