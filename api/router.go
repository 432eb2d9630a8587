package api

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unkn0wn-root/userd"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Options configure the router. All fields are optional.
type Options struct {
	Logger         userd.Logger
	RequestTimeout time.Duration    // 0 => no per-request deadline
	Checks         map[string]Check // run by GET /healthz
}

// NewRouter wires the user routes and middleware onto a fresh engine.
func NewRouter(svc Service, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = userd.NopLogger{}
	}
	h := &handler{svc: svc, log: log}

	r := gin.New()
	r.Use(RequestID(), AccessLog(log), Recovery(log), Timeout(opts.RequestTimeout))

	r.GET("/users", h.listUsers)
	r.GET("/get_user/:id", h.getUser)
	r.POST("/add_user", h.addUser)
	r.DELETE("/delete_user/:id", h.deleteUser)
	r.POST("/update_user/:id", h.updateUser)
	r.GET("/healthz", health(opts.Checks))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{Message: "Not found"})
	})
	return r
}

// health runs checks in name order and reports the first failure.
func health(checks map[string]Check) gin.HandlerFunc {
	names := slices.Sorted(maps.Keys(checks))
	return func(c *gin.Context) {
		for _, name := range names {
			if err := checks[name](c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, Response{
					Message: name + " unavailable: " + err.Error(),
					Data:    gin.H{"status": "degraded", "failed": name},
				})
				return
			}
		}
		c.JSON(http.StatusOK, Response{Message: "ok", Success: true, Data: gin.H{"status": "ok"}})
	}
}
