package http

import (
	"context"
	"net/http"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/km-arc/go-persistence/framework/container"
	"github.com/km-arc/go-persistence/framework/routing"
)

// Inspector is the part of *container.Container the handler needs.
type Inspector interface {
	Get(ctx context.Context, cat container.Category, name string) (any, error)
	Names(cat container.Category) []string
	DefaultName(cat container.Category) string
	Loaded(cat container.Category, name string) bool
	Reset() error
}

// Instance describes one named entry of a category.
type Instance struct {
	Name    string `json:"name"`
	Default bool   `json:"default"`
	Loaded  bool   `json:"loaded"`
}

// CategoryView is the JSON form of one category.
type CategoryView struct {
	Category  string     `json:"category"`
	Default   string     `json:"default"`
	Instances []Instance `json:"instances"`
}

// ContainerHandler serves the container routes.
type ContainerHandler struct {
	c      Inspector
	logger *zap.Logger
}

// NewContainerHandler creates a handler over c. A nil logger is replaced
// with a no-op logger.
func NewContainerHandler(c Inspector, logger *zap.Logger) *ContainerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContainerHandler{c: c, logger: logger}
}

// Routes mounts the handler on r under /container.
func (h *ContainerHandler) Routes(r *routing.Router) {
	r.Prefix("/container", func(r *routing.Router) {
		r.Get("/", h.Index)
		r.Post("/reset", h.Reset)
		r.Get("/{category}", h.Category)
		r.Post("/{category}/{name}", h.Build)
	})
}

// Index lists every category.
func (h *ContainerHandler) Index(w http.ResponseWriter, r *http.Request) {
	views := make([]CategoryView, 0, len(container.Categories))
	for _, cat := range container.Categories {
		views = append(views, h.view(cat))
	}
	NewResponse(w).Success(views)
}

// Category lists the names of one category.
func (h *ContainerHandler) Category(w http.ResponseWriter, r *http.Request) {
	cat, err := container.ParseCategory(routing.Param(r, "category"))
	if err != nil {
		NewResponse(w).NotFound(err.Error())
		return
	}
	NewResponse(w).Success(h.view(cat))
}

// Build resolves one instance, constructing it on first use.
func (h *ContainerHandler) Build(w http.ResponseWriter, r *http.Request) {
	res := NewResponse(w)
	cat, err := container.ParseCategory(routing.Param(r, "category"))
	if err != nil {
		res.NotFound(err.Error())
		return
	}
	name := routing.Param(r, "name")
	if _, err := h.c.Get(r.Context(), cat, name); err != nil {
		var nf *container.NameNotFoundError
		if errors.As(err, &nf) {
			res.NotFound(err.Error())
			return
		}
		h.logger.Error("build failed", zap.Stringer("category", cat), zap.String("name", name), zap.Error(err))
		res.ServerError(err.Error())
		return
	}
	res.Success(Instance{
		Name:    name,
		Default: name == h.c.DefaultName(cat),
		Loaded:  true,
	})
}

// Reset drops every built instance.
func (h *ContainerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.c.Reset(); err != nil {
		h.logger.Error("reset failed", zap.Error(err))
		NewResponse(w).ServerError(err.Error())
		return
	}
	NewResponse(w).NoContent()
}

func (h *ContainerHandler) view(cat container.Category) CategoryView {
	def := h.c.DefaultName(cat)
	names := h.c.Names(cat)
	v := CategoryView{Category: string(cat), Default: def, Instances: make([]Instance, 0, len(names))}
	for _, name := range names {
		v.Instances = append(v.Instances, Instance{
			Name:    name,
			Default: name == def,
			Loaded:  h.c.Loaded(cat, name),
		})
	}
	return v
}
