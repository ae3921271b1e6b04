package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/routebind/internal/cookies"
	"github.com/vyrodovalexey/routebind/internal/history"
	"github.com/vyrodovalexey/routebind/internal/httpclient"
	"github.com/vyrodovalexey/routebind/internal/middleware"
	"github.com/vyrodovalexey/routebind/internal/observability"
	"github.com/vyrodovalexey/routebind/internal/preload"
	"github.com/vyrodovalexey/routebind/internal/router"
	"github.com/vyrodovalexey/routebind/internal/stacktrace"
	"github.com/vyrodovalexey/routebind/internal/util"
)

// handleRender matches the request against the route tree and writes the
// outcome.
func (s *Server) handleRender(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Header("Allow", "GET, HEAD")
		c.AbortWithStatus(http.StatusMethodNotAllowed)
		return
	}

	target, ok := s.stripBasename(c.Request.URL.EscapedPath())
	if !ok {
		s.writeNotFound(c, c.Request.URL.RequestURI())
		return
	}
	if c.Request.URL.RawQuery != "" {
		target += "?" + c.Request.URL.RawQuery
	}

	ctx := c.Request.Context()
	result, err := s.matcher.Match(ctx, s.Routes(), router.WithURL(target))
	if err != nil {
		var notFound *router.NoRouteMatchedError
		if errors.As(err, &notFound) {
			s.writeNotFound(c, notFound.URL)
			return
		}
		s.writeError(c, err)
		return
	}

	switch r := result.(type) {
	case *router.Redirect:
		s.writeRedirect(c, r)
	case *router.Matched:
		s.writeMatched(c, r.State)
	}
}

func (s *Server) writeRedirect(c *gin.Context, r *router.Redirect) {
	href := history.NewMemory(history.WithBasename(s.config.Basename)).CreateHref(r.Location)
	middleware.AddSpanEvent(c, "redirect", attribute.String("routebind.redirect", href))
	c.Redirect(r.Status, href)
}

func (s *Server) writeMatched(c *gin.Context, state router.RouterState) {
	routePath := router.GetRoutePath(state)
	middleware.SetRoute(c, routePath)

	var client *httpclient.Client
	if s.client != nil {
		client = s.client.ForRequest(c.Request)
	}

	ctx := preload.WithRequestCookies(c.Request.Context(), cookies.All(c.Request))
	data, err := s.runner.Run(ctx, state, client)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			s.writeNotFound(c, state.Location.String())
			return
		}
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusOK)
	data.WriteCookies(c.Writer)
	if err := s.renderer.Render(c.Writer, c.Request, newRenderData(state, data.Snapshot())); err != nil {
		s.writeError(c, err)
		return
	}
}

func (s *Server) writeNotFound(c *gin.Context, url string) {
	home := s.config.Basename
	if home == "" {
		home = "/"
	}
	c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(renderNotFound(url, home)))
}

func (s *Server) writeError(c *gin.Context, err error) {
	s.logger.WithContext(c.Request.Context()).Error("failed to render location",
		observability.String("path", c.Request.URL.Path),
		observability.Error(err),
	)
	middleware.RecordSpanError(c, err)
	_ = c.Error(err)
	middleware.WriteError(c, stacktrace.Capture(err), s.config.StackTrace, s.config.PageOptions)
}

// stripBasename removes the configured basename from path. It reports
// false when path lies outside the basename.
func (s *Server) stripBasename(path string) (string, bool) {
	base := strings.TrimSuffix(s.config.Basename, "/")
	if base == "" {
		return path, true
	}
	if path == base {
		return "/", true
	}
	if !strings.HasPrefix(path, base+"/") {
		return "", false
	}
	return path[len(base):], true
}
