package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/core/gamification"
)

type (
	PurchaseRequest struct {
		Feature string `json:"feature" validate:"required,alphanum_"`
	}

	GamificationSummary struct {
		Data      gamification.Data       `json:"data"`
		Purchases []gamification.Purchase `json:"purchases"`
	}
)

type gamificationApi struct {
	svc      *gamification.Service
	validate *validator.Validate
}

func registerGamificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := gamificationApi{svc: deps.GamSvc, validate: deps.Validate}

	gg := g.Group("/gamification", jwt)
	gg.GET("", api.summary)
	gg.POST("/purchase", api.purchase)
	gg.POST("/streak", api.checkStreak)
	gg.GET("/history", api.history)
	gg.GET("/leaderboard", api.leaderboard)
}

// Handlers

func (api *gamificationApi) summary(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	purchases := api.svc.Purchases(claims.Username)
	if purchases == nil {
		purchases = []gamification.Purchase{}
	}
	return ctx.JSON(http.StatusOK, GamificationSummary{
		Data:      api.svc.Data(claims.Username),
		Purchases: purchases,
	})
}

// purchase resolves the price server-side from the catalog; clients only
// name the feature.
func (api *gamificationApi) purchase(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data PurchaseRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PurchaseRequest")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	price, ok := gamification.Prices[data.Feature]
	if !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "feature", Error: "unknown feature"})
	}

	result, err := api.svc.PurchaseFeature(claims.Username, data.Feature, price)
	if err != nil {
		return errors.Wrap(err, "purchasing feature")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (api *gamificationApi) checkStreak(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	result, err := api.svc.CheckAndUpdateStreak(claims.Username)
	if err != nil {
		return errors.Wrap(err, "updating streak")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (api *gamificationApi) history(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	limit := 20
	if raw := ctx.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	entries := api.svc.History(claims.Username, limit)
	if entries == nil {
		entries = []gamification.Transaction{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *gamificationApi) leaderboard(ctx echo.Context) error {
	board := api.svc.Leaderboard()
	if board == nil {
		board = []gamification.LeaderboardEntry{}
	}
	return ctx.JSON(http.StatusOK, board)
}
