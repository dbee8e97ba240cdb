package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trockboppro/v4panel/internal/middleware"
	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/service"
)

func (api *Api) createNode(c *gin.Context) {
	var req service.CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, &model.ValidationError{Msg: err.Error()})
		return
	}
	n, err := api.service.CreateNode(c.Request.Context(), middleware.Caller(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (api *Api) listNodes(c *gin.Context) {
	nodes, err := api.service.ListNodes(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		fail(c, err)
		return
	}
	if nodes == nil {
		nodes = []*model.Node{}
	}
	c.JSON(http.StatusOK, nodes)
}

func (api *Api) getNode(c *gin.Context) {
	caller := middleware.Caller(c)
	if !caller.Admin {
		fail(c, &model.AuthorizationError{Msg: "only admins may manage nodes"})
		return
	}
	n, err := api.service.GetNode(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (api *Api) deleteNode(c *gin.Context) {
	if err := api.service.DeleteNode(c.Request.Context(), middleware.Caller(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (api *Api) createUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, &model.ValidationError{Msg: err.Error()})
		return
	}
	u, err := api.service.CreateUser(c.Request.Context(), middleware.Caller(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}
