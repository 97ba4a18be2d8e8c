package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/core/user"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	AuthResponse struct {
		Token string       `json:"token"`
		User  user.Session `json:"user"`
	}

	RoleRequest struct {
		Role string `json:"role" validate:"required"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (r *LoginRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email, true)
	return validate.Struct(r)
}

type userApi struct {
	svc        *user.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{
		svc:        deps.UserSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/register", api.register)
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.POST("/logout", api.logout)
	ag.PUT("/me/credentials", api.updateCredentials)

	ag.GET("/me/notifications", api.notifications)
	ag.POST("/me/notifications/read-all", api.markAllNotificationsRead)
	ag.POST("/me/notifications/:id/read", api.markNotificationRead)
	ag.DELETE("/me/notifications", api.clearNotifications)

	ag.GET("/me/stats", api.stats)

	// admin endpoints
	adm := ag.Group("", adminMiddleware())
	adm.GET("", api.query)
	adm.PUT("", api.upsert)
	adm.DELETE("/:username", api.destroy)
	adm.PUT("/:username/role", api.updateRole)
	adm.PUT("/:username/access", api.setAccess)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Register(data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}

	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, AuthResponse{Token: token, User: usr.Session()})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, claims, err := authenticate(data.Email, data.Password, api.svc)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, AuthResponse{Token: token, User: usr.Session()})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr.Session())
}

func (api *userApi) logout(ctx echo.Context) error {
	if err := api.svc.Logout(); err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "logged out"})
}

func (api *userApi) updateCredentials(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data user.Credentials
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.UpdateCredentials(claims.Username, data)
	if err != nil {
		return errors.Wrap(err, "updating credentials")
	}
	return ctx.JSON(http.StatusOK, usr.Session())
}

func (api *userApi) query(ctx echo.Context) error {
	users := api.svc.Users()
	sessions := make([]user.Session, 0, len(users))
	for _, usr := range users {
		sessions = append(sessions, usr.Session())
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *userApi) upsert(ctx echo.Context) error {
	var data user.User
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to User")
	}
	usr, err := api.svc.Upsert(data)
	if err != nil {
		return errors.Wrap(err, "upserting user")
	}
	return ctx.JSON(http.StatusOK, usr.Session())
}

func (api *userApi) destroy(ctx echo.Context) error {
	username := ctx.Param("username")

	// ctxUser cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.Username == username {
		return errHttpForbidden
	}

	if err = api.svc.Delete(username); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) updateRole(ctx echo.Context) error {
	var data RoleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoleRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	usr, err := api.svc.UpdateRole(ctx.Param("username"), data.Role)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, usr.Session())
}

func (api *userApi) setAccess(ctx echo.Context) error {
	var access map[string]user.AccessGrant
	if err := ctx.Bind(&access); err != nil {
		return errors.Wrap(err, "binding to access map")
	}

	usr, err := api.svc.SetAccess(ctx.Param("username"), access)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "setting access")
	}
	return ctx.JSON(http.StatusOK, usr.Session())
}

func (api *userApi) notifications(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	notifs := api.svc.Notifications(claims.Username)
	if notifs == nil {
		notifs = []user.Notification{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"notifications": notifs,
		"unread_count":  api.svc.UnreadCount(claims.Username),
	})
}

func (api *userApi) markNotificationRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	changed, err := api.svc.MarkNotificationRead(claims.Username, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"changed": changed})
}

func (api *userApi) markAllNotificationsRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.MarkAllNotificationsRead(claims.Username); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "all notifications read"})
}

func (api *userApi) clearNotifications(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.ClearNotifications(claims.Username); err != nil {
		return errors.Wrap(err, "clearing notifications")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) stats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.svc.Stats(claims.Username))
}
