// Package devtools is a read-only inspector surface for a running plugin
// runtime: a small gin HTTP API plus a websocket feed tailing event-bus
// traffic. Nothing on this surface can load, unload, enable, disable, or
// otherwise mutate plugin state — it exists purely for a connected
// developer tool to observe what the runtime is doing.
package devtools

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperr "github.com/waveform-labs/pluginhost/internal/errors"
	"github.com/waveform-labs/pluginhost/internal/plugins"
)

// PluginView is a loaded plugin's record projected for JSON output.
type PluginView struct {
	Name        string   `json:"name"`
	SafeName    string   `json:"safe_name"`
	Type        string   `json:"type"`
	Category    string   `json:"category"`
	Enabled     bool     `json:"enabled"`
	LoadedAt    string   `json:"loaded_at"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Permissions []string `json:"permissions"`
}

func viewOf(s plugins.PluginSummary) PluginView {
	return PluginView{
		Name:        s.Name,
		SafeName:    s.SafeName,
		Type:        s.Type,
		Category:    s.Category,
		Enabled:     s.Enabled,
		LoadedAt:    s.LoadedAt.Format(http.TimeFormat),
		Fingerprint: s.Fingerprint,
		Permissions: s.Permissions,
	}
}

// Server is the devtools HTTP+websocket surface over a single Runtime.
type Server struct {
	engine *gin.Engine
	rt     *plugins.Runtime
	hub    *eventHub
}

// NewServer builds the gin engine and route table and starts tailing the
// runtime's event bus for the websocket feed.
func NewServer(rt *plugins.Runtime) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(apperr.Recovery(), apperr.ErrorHandler())

	s := &Server{engine: engine, rt: rt, hub: newEventHub()}
	rt.TapEvents(s.hub.broadcast)

	engine.GET("/plugins", s.listPlugins)
	engine.GET("/plugins/:name", s.getPlugin)
	engine.GET("/ledger/:name", s.getLedger)
	engine.GET("/events/stream", s.streamEvents)

	return s
}

// Engine returns the underlying gin engine, for the caller to Run or embed
// in its own http.Server.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) listPlugins(c *gin.Context) {
	names := s.rt.List()
	views := make([]PluginView, 0, len(names))
	for _, name := range names {
		if summary, ok := s.rt.Describe(name); ok {
			views = append(views, viewOf(summary))
		}
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) getPlugin(c *gin.Context) {
	name := c.Param("name")
	summary, ok := s.rt.Describe(name)
	if !ok {
		apperr.AbortWithError(c, apperr.PluginNotFound(name))
		return
	}
	c.JSON(http.StatusOK, viewOf(summary))
}

func (s *Server) getLedger(c *gin.Context) {
	name := c.Param("name")
	c.JSON(http.StatusOK, gin.H{"plugin": name, "permissions": s.rt.GrantedPermissionNames(name)})
}
