package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brucki/mg-test/internal/domain/user"
	"github.com/brucki/mg-test/internal/users"
)

type UsersHandler struct {
	svc users.Service
	now func() time.Time
}

func NewUsersHandler(svc users.Service) *UsersHandler {
	return &UsersHandler{svc: svc, now: time.Now}
}

// ListUsers serves GET /api/users with optional firstName, lastName,
// gender, birthdateFrom and birthdateTo filters applied to the upstream list.
func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	filter, ok := parseFilter(ctx)
	if !ok {
		return
	}

	recs, err := h.svc.ListUsers(ctx.Request.Context())
	if err != nil {
		RespondUpstreamError(ctx, err)
		return
	}

	items := NewUserViews(filter.Apply(recs), h.now())

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *UsersHandler) GetUser(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	rec, err := h.svc.GetUser(ctx.Request.Context(), id)
	if err != nil {
		RespondUpstreamError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, NewUserView(rec, h.now()))
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var in user.Input
	if !BindJSON(ctx, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		RespondUpstreamError(ctx, err)
		return
	}

	rec, err := h.svc.CreateUser(ctx.Request.Context(), user.New(in.Draft()))
	if err != nil {
		RespondUpstreamError(ctx, err)
		return
	}

	if id, ok := rec.ID(); ok {
		ctx.Header("Location", "/api/users/"+strconv.FormatInt(id, 10))
	}
	ctx.JSON(http.StatusCreated, NewUserView(rec, h.now()))
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	var in user.Input
	if !BindJSON(ctx, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		RespondUpstreamError(ctx, err)
		return
	}

	rec, err := h.svc.UpdateUser(ctx.Request.Context(), user.New(in.Draft()).WithID(id))
	if err != nil {
		RespondUpstreamError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, NewUserView(rec, h.now()))
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	if err := h.svc.DeleteUser(ctx.Request.Context(), id); err != nil {
		RespondUpstreamError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func parseID(ctx *gin.Context) (int64, bool) {
	raw := ctx.Param("id")

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "User id must be a positive integer", gin.H{"field": "id", "value": raw})
		return 0, false
	}
	return id, true
}

func parseFilter(ctx *gin.Context) (user.Filter, bool) {
	f := user.Filter{
		FirstName: strings.TrimSpace(ctx.Query("firstName")),
		LastName:  strings.TrimSpace(ctx.Query("lastName")),
	}

	if g := strings.TrimSpace(ctx.Query("gender")); g != "" {
		f.Gender = user.Gender(strings.ToLower(g))
		if !f.Gender.IsValid() {
			RespondBadRequest(ctx, "Invalid filter", gin.H{"field": "gender", "value": g})
			return user.Filter{}, false
		}
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"birthdateFrom", &f.BirthdateFrom},
		{"birthdateTo", &f.BirthdateTo},
	} {
		raw := strings.TrimSpace(ctx.Query(p.name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(user.DateLayout, raw)
		if err != nil {
			RespondBadRequest(ctx, "Invalid filter", gin.H{"field": p.name, "value": raw})
			return user.Filter{}, false
		}
		*p.dst = &t
	}

	if f.BirthdateFrom != nil && f.BirthdateTo != nil && f.BirthdateFrom.After(*f.BirthdateTo) {
		RespondBadRequest(ctx, "Invalid filter", gin.H{"field": "birthdateFrom", "reason": "must not be after birthdateTo"})
		return user.Filter{}, false
	}

	return f, true
}
