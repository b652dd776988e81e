package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"teach-quiz-service/internal/app"
	"teach-quiz-service/internal/domain"
)

type teacherAPI struct {
	svc TeacherService
}

func registerTeacherAPI(g *echo.Group, svc TeacherService) {
	api := teacherAPI{svc: svc}

	g.POST("", api.create)
	g.GET("", api.list)

	dg := g.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/activate", api.activate)
	dg.POST("/finish", api.finish)
	dg.POST("/questions", api.addQuestion)
	dg.PATCH("/questions/:qid", api.updateQuestion)
	dg.DELETE("/questions/:qid", api.removeQuestion)
	dg.GET("/statistics", api.statistics)
	dg.GET("/responses", api.responses)
}

func (api *teacherAPI) create(c echo.Context) error {
	var in app.CreateQuizInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	quiz, err := api.svc.CreateQuiz(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, quiz)
}

func (api *teacherAPI) list(c echo.Context) error {
	quizzes, err := api.svc.ListQuizzes(c.Request().Context(), c.QueryParam("course_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quizzes)
}

func (api *teacherAPI) retrieve(c echo.Context) error {
	quiz, err := api.svc.GetQuiz(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quiz)
}

func (api *teacherAPI) update(c echo.Context) error {
	var in app.UpdateQuizInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	quiz, err := api.svc.UpdateQuiz(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quiz)
}

func (api *teacherAPI) destroy(c echo.Context) error {
	if err := api.svc.DeleteQuiz(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (api *teacherAPI) activate(c echo.Context) error {
	quiz, err := api.svc.Activate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quiz)
}

func (api *teacherAPI) finish(c echo.Context) error {
	quiz, err := api.svc.Finish(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quiz)
}

func (api *teacherAPI) addQuestion(c echo.Context) error {
	var in app.QuestionInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	question, err := api.svc.AddQuestion(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, question)
}

func (api *teacherAPI) updateQuestion(c echo.Context) error {
	var in app.QuestionPatch
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	question, err := api.svc.UpdateQuestion(c.Request().Context(), c.Param("id"), c.Param("qid"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, question)
}

func (api *teacherAPI) removeQuestion(c echo.Context) error {
	if err := api.svc.RemoveQuestion(c.Request().Context(), c.Param("id"), c.Param("qid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (api *teacherAPI) statistics(c echo.Context) error {
	stats, err := api.svc.Statistics(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (api *teacherAPI) responses(c echo.Context) error {
	records, err := api.svc.Responses(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

// bindJSON decodes the request body; a malformed body is a validation error.
func bindJSON(c echo.Context, dst interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return domain.NewValidationError(fmt.Sprintf("malformed request body: %v", bindMessage(err)))
	}
	return nil
}

func bindMessage(err error) interface{} {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Message
	}
	return err
}
