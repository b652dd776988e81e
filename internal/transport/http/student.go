package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"teach-quiz-service/internal/app"
)

type studentAPI struct {
	svc StudentService
}

type joinRequest struct {
	Email string `json:"email"`
}

func registerStudentAPI(g *echo.Group, svc StudentService) {
	api := studentAPI{svc: svc}

	dg := g.Group("/:id")
	dg.POST("/join", api.join)
	dg.GET("/student", api.questions)
	dg.POST("/answer", api.answer)
	dg.GET("/my-progress", api.progress)
}

func (api *studentAPI) join(c echo.Context) error {
	var req joinRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	result, err := api.svc.Join(c.Request().Context(), c.Param("id"), req.Email)
	if err != nil {
		return err
	}
	code := http.StatusCreated
	if result.Resumed {
		code = http.StatusOK
	}
	return c.JSON(code, result)
}

func (api *studentAPI) questions(c echo.Context) error {
	quiz, err := api.svc.QuestionsForStudent(c.Request().Context(), c.Param("id"), c.QueryParam("email"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quiz)
}

func (api *studentAPI) answer(c echo.Context) error {
	var in app.AnswerInput
	if err := bindJSON(c, &in); err != nil {
		return err
	}
	result, err := api.svc.SubmitAnswer(c.Request().Context(), c.Param("id"), c.QueryParam("email"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (api *studentAPI) progress(c echo.Context) error {
	rec, err := api.svc.Progress(c.Request().Context(), c.Param("id"), c.QueryParam("email"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}
