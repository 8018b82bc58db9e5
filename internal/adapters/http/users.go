package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Signal/internal/domain"
	"github.com/dkeye/Signal/internal/storage"
)

type UserStore interface {
	FindUserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	ListUsers(ctx context.Context, except []domain.UserID) ([]domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	UpdateUser(ctx context.Context, id domain.UserID, patch storage.UserPatch) (*domain.User, error)
}

type CallHistory interface {
	History(ctx context.Context, user domain.UserID, limit int) ([]domain.CallRecord, error)
}

// userForm accepts JSON and urlencoded bodies alike.
type userForm struct {
	UserID      string  `json:"userId" form:"userId"`
	Name        *string `json:"name" form:"name"`
	DeviceToken *string `json:"deviceToken" form:"deviceToken"`
}

type UsersController struct {
	Users   UserStore
	History CallHistory
}

func (ctl *UsersController) Register(g *gin.RouterGroup) {
	g.GET("", ctl.list)
	g.POST("", ctl.create)
	g.GET("/:userId", ctl.get)
	g.POST("/:userId", ctl.update)
	if ctl.History != nil {
		g.GET("/:userId/callings", ctl.callings)
	}
}

func (ctl *UsersController) list(c *gin.Context) {
	var except []domain.UserID
	if raw := c.Query("except"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				except = append(except, domain.UserID(id))
			}
		}
	}
	users, err := ctl.Users.ListUsers(c.Request.Context(), except)
	if err != nil {
		log.Error().Str("module", "adapters.http").Err(err).Msg("list users")
		respondFail(c, err)
		return
	}
	respond(c, http.StatusOK, users)
}

func (ctl *UsersController) create(c *gin.Context) {
	var form userForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest)
		return
	}
	user, err := domain.NewUser(form.UserID, deref(form.Name), deref(form.DeviceToken))
	if err != nil {
		respondError(c, http.StatusBadRequest)
		return
	}
	saved, err := ctl.Users.CreateUser(c.Request.Context(), *user)
	switch {
	case errors.Is(err, storage.ErrUserExists):
		respondError(c, http.StatusConflict)
	case err != nil:
		log.Error().Str("module", "adapters.http").Err(err).Str("user", form.UserID).Msg("create user")
		respondFail(c, err)
	default:
		log.Info().Str("module", "adapters.http").Str("user", saved.ID.String()).Msg("user created")
		respond(c, http.StatusCreated, saved)
	}
}

func (ctl *UsersController) get(c *gin.Context) {
	user, err := ctl.Users.FindUserByID(c.Request.Context(), domain.UserID(c.Param("userId")))
	switch {
	case err != nil:
		respondFail(c, err)
	case user == nil:
		respondError(c, http.StatusNotFound)
	default:
		respond(c, http.StatusOK, user)
	}
}

// update uses POST rather than PUT: device tokens can exceed query string limits.
func (ctl *UsersController) update(c *gin.Context) {
	var form userForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest)
		return
	}
	id := domain.UserID(c.Param("userId"))
	updated, err := ctl.Users.UpdateUser(c.Request.Context(), id, storage.UserPatch{Name: form.Name, DeviceToken: form.DeviceToken})
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		respondError(c, http.StatusNotFound)
	case errors.Is(err, domain.ErrUsernameTooLong), errors.Is(err, domain.ErrDeviceTokenTooLong):
		respondError(c, http.StatusBadRequest)
	case err != nil:
		log.Error().Str("module", "adapters.http").Err(err).Str("user", id.String()).Msg("update user")
		respondFail(c, err)
	default:
		respond(c, http.StatusCreated, updated)
	}
}

func (ctl *UsersController) callings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := ctl.History.History(c.Request.Context(), domain.UserID(c.Param("userId")), limit)
	if err != nil {
		respondFail(c, err)
		return
	}
	respond(c, http.StatusOK, records)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
