package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/edumvp/backend/apps/api/echo"
	"github.com/edumvp/backend/core/course"
	"github.com/edumvp/backend/core/user"
	testutil "github.com/edumvp/backend/tests"
)

func Test_courseApi_query(t *testing.T) {
	resetState(t)

	student := testutil.CreateUser(t, usrSvc, "hero@example.com", "LolCat123", "Геро", "Иванов", user.RoleStudent)
	token := getToken(t, student)

	mathCourse, err := courseSvc.Course("math")
	if err != nil {
		t.Fatalf("Course(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", path: "/v1/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Get all", path: "/v1/courses", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, courseSvc.Courses())},
		{name: "Get one", path: "/v1/courses/math", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, mathCourse)},
		{name: "Unknown course", path: "/v1/courses/chem", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "Lessons", path: "/v1/courses/math/lessons", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, courseSvc.Lessons("math"))},
		{name: "Tasks", path: "/v1/tasks", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, courseSvc.Tasks())},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_upsert(t *testing.T) {
	resetState(t)

	student := testutil.CreateUser(t, usrSvc, "hero@example.com", "LolCat123", "Геро", "Иванов", user.RoleStudent)
	teacher := testutil.CreateUser(t, usrSvc, "prof@example.com", "LolCat123", "Проф", "Петров", user.RoleTeacher)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Teacher required", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Created with defaults", token: getToken(t, teacher), wantCode: http.StatusOK, body: marchallObj(t, course.CourseInput{})},
		{
			name: "Seed override", token: getToken(t, teacher), wantCode: http.StatusOK,
			body: marchallObj(t, course.CourseInput{ID: "math", Title: "Алгебра"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut
		tt.path = "/v1/courses"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var crs course.Course
				if err := json.Unmarshal(rec.Body.Bytes(), &crs); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if crs.ID == "" {
					t.Error("failed! empty course id")
				}
				switch tt.name {
				case "Created with defaults":
					if crs.Title != "Новый курс" {
						t.Errorf("failed! title = %v; want Новый курс", crs.Title)
					}
				case "Seed override":
					if crs.Title != "Алгебра" {
						t.Errorf("failed! title = %v; want Алгебра", crs.Title)
					}
					if len(crs.Lessons) != 2 { // seed lessons survive the overlay
						t.Errorf("failed! len(lessons) = %d; want 2", len(crs.Lessons))
					}
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_attachDetachTask(t *testing.T) {
	resetState(t)

	teacher := testutil.CreateUser(t, usrSvc, "prof@example.com", "LolCat123", "Проф", "Петров", user.RoleTeacher)
	token := getToken(t, teacher)

	lessonHomework := func(t *testing.T) []string {
		lesson, err := courseSvc.Lesson("math", "2")
		if err != nil {
			t.Fatalf("Lesson(): %v", err)
		}
		return lesson.Homework
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/courses/math/lessons/2/tasks/math-001", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
	}
	if hw := lessonHomework(t); len(hw) != 2 || hw[1] != "math-001" {
		t.Errorf("failed! homework = %v; want [math-003 math-001]", hw)
	}

	req, rec = newAuthRequest(http.MethodDelete, "/v1/courses/math/lessons/2/tasks/math-001", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
	}
	if hw := lessonHomework(t); len(hw) != 1 || hw[0] != "math-003" {
		t.Errorf("failed! homework = %v; want [math-003]", hw)
	}

	// unknown lesson
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses/math/lessons/99/tasks/math-001", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusNotFound)
	}
}

func Test_courseApi_checkAnswer(t *testing.T) {
	resetState(t)

	student := testutil.CreateUser(t, usrSvc, "hero@example.com", "LolCat123", "Геро", "Иванов", user.RoleStudent)
	token := getToken(t, student)

	stats := func(total, correct int, subjects map[string]user.SubjectStats) user.Stats {
		return user.Stats{Total: total, Correct: correct, Subjects: subjects}
	}

	// stats accumulate across attempts, so order matters here
	tests := []httpTest{
		{name: "Auth required", path: "/v1/tasks/math-001/check", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "correct", path: "/v1/tasks/math-001/check", token: token,
			body: marchallObj(t, echoapi.AnswerRequest{Answer: " 6 "}), wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.AnswerResponse{
				Correct: true,
				Stats:   stats(1, 1, map[string]user.SubjectStats{"math": {Total: 1, Correct: 1}}),
			}),
		},
		{
			name: "wrong", path: "/v1/tasks/math-001/check", token: token,
			body: marchallObj(t, echoapi.AnswerRequest{Answer: "7"}), wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.AnswerResponse{
				Stats: stats(2, 1, map[string]user.SubjectStats{"math": {Total: 2, Correct: 1}}),
			}),
		},
		{
			name: "close typo", path: "/v1/tasks/rus-001/check", token: token,
			body: marchallObj(t, echoapi.AnswerRequest{Answer: "ростение"}), wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.AnswerResponse{
				Close: true,
				Stats: stats(3, 1, map[string]user.SubjectStats{"math": {Total: 2, Correct: 1}, "rus": {Total: 1, Correct: 0}}),
			}),
		},
		{
			name: "unknown task", path: "/v1/tasks/nope/check", token: token,
			body: marchallObj(t, echoapi.AnswerRequest{Answer: "6"}), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_trainerReward(t *testing.T) {
	resetState(t)

	student := testutil.CreateUser(t, usrSvc, "hero@example.com", "LolCat123", "Геро", "Иванов", user.RoleStudent)
	token := getToken(t, student)
	body := marchallObj(t, echoapi.AnswerRequest{Answer: "6"})

	// every 10th correct answer credits one coin
	for i := 0; i < 10; i++ {
		req, rec := newAuthRequest(http.MethodPost, "/v1/tasks/math-001/check", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
	}
	if coins := gamSvc.Coins(student.Username); coins != 1 {
		t.Errorf("failed! coins = %d; want 1", coins)
	}
}
