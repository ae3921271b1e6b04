package server

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/vyrodovalexey/routebind/internal/location"
	"github.com/vyrodovalexey/routebind/internal/router"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RenderData is everything a renderer needs to produce the page for a
// matched location.
type RenderData struct {
	// RoutePath is the parametrized path of the matched chain.
	RoutePath string `json:"routePath"`
	// URL is the matched location without the basename.
	URL      string            `json:"url"`
	Location location.Location `json:"-"`
	Params   router.Params     `json:"params"`
	// Routes are the names of the matched routes, root to leaf. Unnamed
	// routes contribute their path.
	Routes []string `json:"routes"`
	// Views are the non-nil views of the matched routes, root to leaf.
	Views []any `json:"views,omitempty"`
	// Data holds the values stored by preloads.
	Data map[string]any `json:"data"`
}

// Renderer writes the response for a matched location.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, data RenderData) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(w http.ResponseWriter, r *http.Request, data RenderData) error

// Render implements Renderer.
func (f RendererFunc) Render(w http.ResponseWriter, r *http.Request, data RenderData) error {
	return f(w, r, data)
}

// JSONRenderer writes RenderData as a JSON document.
type JSONRenderer struct {
	// Indent pretty-prints the output when true.
	Indent bool
}

// Render implements Renderer.
func (j JSONRenderer) Render(w http.ResponseWriter, r *http.Request, data RenderData) error {
	var (
		body []byte
		err  error
	)
	if j.Indent {
		body, err = json.MarshalIndent(data, "", "  ")
	} else {
		body, err = json.Marshal(data)
	}
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return nil
	}
	_, err = w.Write(body)
	return err
}

func newRenderData(state router.RouterState, data map[string]any) RenderData {
	rd := RenderData{
		RoutePath: router.GetRoutePath(state),
		URL:       location.ToURL(state.Location),
		Location:  state.Location,
		Params:    state.Params,
		Routes:    make([]string, 0, len(state.MatchedRoutes)),
		Data:      data,
	}
	if rd.Params == nil {
		rd.Params = router.Params{}
	}
	if rd.Data == nil {
		rd.Data = map[string]any{}
	}
	for _, route := range state.MatchedRoutes {
		name := route.Name
		if name == "" {
			name = route.Path
		}
		rd.Routes = append(rd.Routes, name)
		if route.View != nil {
			rd.Views = append(rd.Views, route.View)
		}
	}
	return rd
}
