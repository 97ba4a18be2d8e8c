package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edumvp/backend/core/course"
	"github.com/edumvp/backend/core/homework"
	"github.com/edumvp/backend/core/user"
)

type (
	AddStudentRequest struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name"`
	}

	SubmissionRequest struct {
		Answers map[string]string `json:"answers"`
	}

	FeedbackRequest struct {
		Feedback string `json:"feedback" validate:"required"`
	}
)

type homeworkApi struct {
	svc      *homework.Service
	userSvc  *user.Service
	validate *validator.Validate
}

func registerHomeworkAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := homeworkApi{svc: deps.HomeworkSvc, userSvc: deps.UserSvc, validate: deps.Validate}

	hg := g.Group("/homework", jwt)

	// student endpoints
	hg.GET("", api.studentHomeworks)
	hg.GET("/courses", api.studentCourses)
	hg.GET("/:id", api.retrieve)
	hg.GET("/:id/submission", api.submission)
	hg.PUT("/:id/draft", api.saveDraft)
	hg.POST("/:id/submit", api.submit)
	hg.GET("/my-submissions", api.studentSubmissions)

	// teacher endpoints
	tg := hg.Group("/teacher", teacherMiddleware())
	tg.GET("/students", api.allStudents)
	tg.GET("/my-students", api.myStudents)
	tg.POST("/my-students", api.addStudent)
	tg.DELETE("/my-students/:studentID", api.removeStudent)
	tg.GET("/homeworks", api.teacherHomeworks)
	tg.POST("/homeworks", api.create)
	tg.DELETE("/homeworks/:id", api.destroy)
	tg.GET("/homeworks/:id/submissions", api.homeworkSubmissions)
	tg.POST("/submissions/:id/feedback", api.addFeedback)
}

// Handlers

func (api *homeworkApi) studentHomeworks(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	hws, err := api.svc.ListStudentHomeworks(claims.Username)
	if err != nil {
		if errors.Cause(err) == homework.ErrStudentNotFound {
			return ctx.JSON(http.StatusOK, []homework.Homework{})
		}
		return errors.Wrap(err, "listing student homeworks")
	}
	if hws == nil {
		hws = []homework.Homework{}
	}
	return ctx.JSON(http.StatusOK, hws)
}

func (api *homeworkApi) studentCourses(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := api.userSvc.GetUser(claims.Username)
	if err != nil {
		return errors.Wrap(err, "finding user")
	}
	courses := api.svc.ListCourses(usr.Access)
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *homeworkApi) retrieve(ctx echo.Context) error {
	hw, err := api.svc.HomeworkByID(ctx.Param("id"))
	if err != nil {
		return homeworkError(err)
	}
	return ctx.JSON(http.StatusOK, hw)
}

func (api *homeworkApi) submission(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	sub, err := api.svc.Submission(ctx.Param("id"), claims.Username)
	if err != nil {
		return homeworkError(err)
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *homeworkApi) saveDraft(ctx echo.Context) error {
	return api.writeSubmission(ctx, api.svc.SaveDraft)
}

func (api *homeworkApi) submit(ctx echo.Context) error {
	return api.writeSubmission(ctx, api.svc.Submit)
}

func (api *homeworkApi) writeSubmission(
	ctx echo.Context,
	write func(homeworkID, studentUsername string, answers map[string]string) (homework.Submission, error),
) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data SubmissionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmissionRequest")
	}

	sub, err := write(ctx.Param("id"), claims.Username, data.Answers)
	if err != nil {
		return homeworkError(err)
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *homeworkApi) studentSubmissions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.SubmissionsByStudent(claims.Username)
	if err != nil {
		if errors.Cause(err) == homework.ErrStudentNotFound {
			return ctx.JSON(http.StatusOK, []homework.Submission{})
		}
		return errors.Wrap(err, "listing submissions")
	}
	if subs == nil {
		subs = []homework.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *homeworkApi) allStudents(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.ListStudents())
}

func (api *homeworkApi) myStudents(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	students := api.svc.ListTeacherStudents(claims.Username)
	if students == nil {
		students = []homework.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *homeworkApi) addStudent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data AddStudentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddStudentRequest")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	student, err := api.svc.AddStudentToTeacher(claims.Username, data.Email, data.Name)
	if err != nil {
		return errors.Wrap(err, "adding student")
	}
	return ctx.JSON(http.StatusCreated, student)
}

func (api *homeworkApi) removeStudent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveStudentFromTeacher(claims.Username, ctx.Param("studentID")); err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *homeworkApi) teacherHomeworks(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	hws := api.svc.ListTeacherHomeworks(claims.Username)
	if hws == nil {
		hws = []homework.Homework{}
	}
	return ctx.JSON(http.StatusOK, hws)
}

func (api *homeworkApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data homework.NewHomework
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHomework")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	hw, err := api.svc.CreateHomework(claims.Username, data)
	if err != nil {
		return errors.Wrap(err, "creating homework")
	}
	return ctx.JSON(http.StatusCreated, hw)
}

func (api *homeworkApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteHomework(claims.Username, ctx.Param("id")); err != nil {
		return homeworkError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *homeworkApi) homeworkSubmissions(ctx echo.Context) error {
	subs := api.svc.SubmissionsByHomework(ctx.Param("id"))
	if subs == nil {
		subs = []homework.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *homeworkApi) addFeedback(ctx echo.Context) error {
	var data FeedbackRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeedbackRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	sub, err := api.svc.AddFeedback(ctx.Param("id"), data.Feedback)
	if err != nil {
		return homeworkError(err)
	}
	return ctx.JSON(http.StatusOK, sub)
}

func homeworkError(err error) error {
	switch errors.Cause(err) {
	case homework.ErrHomeworkNotFound, homework.ErrStudentNotFound, homework.ErrSubmissionNotFound:
		return errHttpNotFound
	case homework.ErrNotOwner:
		return errHttpForbidden
	}
	return err
}
