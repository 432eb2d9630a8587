// Package api is the HTTP surface of the user service.
package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/userd"
	"github.com/unkn0wn-root/userd/service"
)

// Service is what the handlers need from the service layer.
type Service interface {
	List(ctx context.Context) ([]userd.User, bool, error)
	Get(ctx context.Context, id string) (userd.User, bool, error)
	Create(ctx context.Context, in userd.User) (userd.User, error)
	Update(ctx context.Context, id string, decode func(*userd.PartialUser) error) (service.UpdateResult, error)
	Delete(ctx context.Context, id string) (uuid.UUID, error)
}

var _ Service = (*service.Users)(nil)

type handler struct {
	svc Service
	log userd.Logger
}

func (h *handler) listUsers(c *gin.Context) {
	users, fromCache, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if fromCache {
		ok(c, "All users from cache", users)
		return
	}
	ok(c, "All users", users)
}

func (h *handler) getUser(c *gin.Context) {
	u, fromCache, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if fromCache {
		ok(c, "User from cache", u)
		return
	}
	ok(c, "User fetched successfully", u)
}

func (h *handler) addUser(c *gin.Context) {
	var in userd.User
	if err := bind(c, &in); err != nil {
		h.fail(c, userd.Validation("Invalid input: %v", err))
		return
	}
	u, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "User added successfully", u)
}

func (h *handler) deleteUser(c *gin.Context) {
	id, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, fmt.Sprintf("User with ID %s deleted", id), statusData{ID: id, Status: "deleted"})
}

func (h *handler) updateUser(c *gin.Context) {
	res, err := h.svc.Update(c.Request.Context(), c.Param("id"), func(p *userd.PartialUser) error {
		return bind(c, p)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.User == nil {
		ok(c, "User updated successfully, but failed to fetch updated data", statusData{ID: res.ID, Status: "updated"})
		return
	}
	ok(c, "User updated successfully", res.User)
}

func (h *handler) fail(c *gin.Context, err error) {
	if userd.KindOf(err) == userd.KindBackend {
		h.log.Error("request failed", userd.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString(requestIDKey),
			"err":        err,
		})
	}
	fail(c, err)
}

// bind decodes the body as XML when the client says so and as JSON otherwise.
func bind(c *gin.Context, obj any) error {
	ct := c.ContentType()
	if ct == gin.MIMEXML || ct == gin.MIMEXML2 || strings.HasSuffix(ct, "+xml") {
		return c.ShouldBindXML(obj)
	}
	return c.ShouldBindJSON(obj)
}
