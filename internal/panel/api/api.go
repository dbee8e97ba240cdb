// Package api binds the panel routes. Handlers stay thin: bind the request,
// pull the caller off the context, delegate to the service, map taxonomy
// errors to statuses.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/service"
)

type Api struct {
	service *service.Service
}

func NewApi(svc *service.Service, router *gin.Engine, auth gin.HandlerFunc) *Api {
	api := &Api{service: svc}
	api.setupRouters(router, auth)
	return api
}

func (api *Api) setupRouters(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	g := router.Group("/api")
	g.Use(auth)

	g.POST("/instances", api.deployInstance)
	g.GET("/instances", api.listInstances)
	g.GET("/instances/:id", api.getInstance)
	g.PUT("/instances/:id/edit", api.editInstance)
	g.POST("/instances/:id/rename", api.renameInstance)
	g.POST("/instances/:id/redeploy", api.redeployInstance)
	g.POST("/instances/:id/reinstall", api.reinstallInstance)
	g.POST("/instances/:id/suspend", api.suspendInstance)
	g.POST("/instances/:id/unsuspend", api.unsuspendInstance)
	g.DELETE("/instances/:id", api.deleteInstance)
	g.GET("/instances/:id/state", api.getInstanceState)
	g.POST("/instances/:id/state/:state", api.setInstanceState)
	g.GET("/instances/:id/console", api.consoleInstance)
	g.PUT("/instances/:id/workflow", api.setWorkflow)
	g.GET("/instances/:id/workflow", api.getWorkflow)

	g.POST("/nodes", api.createNode)
	g.GET("/nodes", api.listNodes)
	g.GET("/nodes/:id", api.getNode)
	g.DELETE("/nodes/:id", api.deleteNode)

	g.POST("/users", api.createUser)
}

// fail writes the taxonomy-mapped status for err.
func fail(c *gin.Context, err error) {
	c.JSON(model.HTTPStatus(err), gin.H{"ok": false, "error": err.Error()})
}
