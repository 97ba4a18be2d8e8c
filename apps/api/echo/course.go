package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edumvp/backend/core/course"
	"github.com/edumvp/backend/core/gamification"
	"github.com/edumvp/backend/core/user"
)

type (
	AnswerRequest struct {
		Answer string `json:"answer"`
	}

	AnswerResponse struct {
		Correct bool       `json:"correct"`
		Close   bool       `json:"close"`
		Stats   user.Stats `json:"stats"`
	}
)

type courseApi struct {
	svc      *course.Service
	userSvc  *user.Service
	gamSvc   *gamification.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{
		svc:      deps.CourseSvc,
		userSvc:  deps.UserSvc,
		gamSvc:   deps.GamSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.GET("/:id/lessons", api.lessons)
	cg.GET("/:id/lessons/:lessonID/tasks", api.lessonTasks)

	// editing is a teacher concern
	tg := cg.Group("", teacherMiddleware())
	tg.PUT("", api.upsert)
	tg.DELETE("/:id", api.destroy)
	tg.PUT("/:id/lessons", api.upsertLesson)
	tg.DELETE("/:id/lessons/:lessonID", api.destroyLesson)
	tg.POST("/:id/lessons/:lessonID/tasks/:taskID", api.attachTask)
	tg.DELETE("/:id/lessons/:lessonID/tasks/:taskID", api.detachTask)

	taskg := g.Group("/tasks", jwt)
	taskg.GET("", api.tasks)
	taskg.POST("/:id/check", api.checkAnswer)
	taskg.PUT("", api.upsertTask, teacherMiddleware())
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Courses())
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.Course(ctx.Param("id"))
	if err != nil {
		return courseError(err)
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) lessons(ctx echo.Context) error {
	lessons := api.svc.Lessons(ctx.Param("id"))
	if lessons == nil {
		lessons = []course.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *courseApi) upsert(ctx echo.Context) error {
	var data course.CourseInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseInput")
	}
	crs, err := api.svc.UpsertCourse(data)
	if err != nil {
		return errors.Wrap(err, "upserting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.RemoveCourse(ctx.Param("id")); err != nil {
		return courseError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) upsertLesson(ctx echo.Context) error {
	var data course.LessonInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonInput")
	}
	lesson, err := api.svc.UpsertLesson(ctx.Param("id"), data)
	if err != nil {
		return courseError(err)
	}
	return ctx.JSON(http.StatusOK, lesson)
}

func (api *courseApi) destroyLesson(ctx echo.Context) error {
	if err := api.svc.RemoveLesson(ctx.Param("id"), ctx.Param("lessonID")); err != nil {
		return courseError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) tasks(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Tasks())
}

func (api *courseApi) upsertTask(ctx echo.Context) error {
	var data course.TaskInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TaskInput")
	}
	task, err := api.svc.UpsertTask(data)
	if err != nil {
		return errors.Wrap(err, "upserting task")
	}
	return ctx.JSON(http.StatusOK, task)
}

func (api *courseApi) attachTask(ctx echo.Context) error {
	err := api.svc.AttachTaskToLesson(ctx.Param("id"), ctx.Param("lessonID"), ctx.Param("taskID"))
	if err != nil {
		return courseError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) detachTask(ctx echo.Context) error {
	err := api.svc.DetachTaskFromLesson(ctx.Param("id"), ctx.Param("lessonID"), ctx.Param("taskID"))
	if err != nil {
		return courseError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) lessonTasks(ctx echo.Context) error {
	tasks, err := api.svc.LessonTasks(ctx.Param("id"), ctx.Param("lessonID"))
	if err != nil {
		return courseError(err)
	}
	if tasks == nil {
		tasks = []course.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

// checkAnswer grades a trainer attempt, records it in the user's stats and
// credits the coin reward every 10th correct answer.
func (api *courseApi) checkAnswer(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data AnswerRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerRequest")
	}

	taskID := ctx.Param("id")
	result, err := api.svc.CheckAnswer(taskID, data.Answer)
	if err != nil {
		return courseError(err)
	}

	task, err := api.svc.Task(taskID)
	if err != nil {
		return courseError(err)
	}
	stats, err := api.userSvc.AddAnswerResult(claims.Username, task.Subject, result.Correct)
	if err != nil {
		return errors.Wrap(err, "recording answer result")
	}

	if result.Correct && stats.Correct > 0 && stats.Correct%10 == 0 {
		if _, err = api.gamSvc.AddCoins(claims.Username, gamification.RewardTrainer10Tasks, "trainer_10_tasks_completed"); err != nil {
			return errors.Wrap(err, "crediting trainer reward")
		}
	}

	return ctx.JSON(http.StatusOK, AnswerResponse{Correct: result.Correct, Close: result.Close, Stats: stats})
}

func courseError(err error) error {
	switch errors.Cause(err) {
	case course.ErrCourseNotFound, course.ErrLessonNotFound, course.ErrTaskNotFound:
		return errHttpNotFound
	}
	return err
}
