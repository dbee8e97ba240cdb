package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trockboppro/v4panel/internal/middleware"
	"github.com/trockboppro/v4panel/internal/panel/model"
	"github.com/trockboppro/v4panel/internal/panel/service"
)

func (api *Api) deployInstance(c *gin.Context) {
	var req service.DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, &model.ValidationError{Msg: err.Error()})
		return
	}
	rec, err := api.service.Deploy(c.Request.Context(), middleware.Caller(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (api *Api) listInstances(c *gin.Context) {
	list, err := api.service.List(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (api *Api) getInstance(c *gin.Context) {
	rec, err := api.service.Get(c.Request.Context(), middleware.Caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (api *Api) editInstance(c *gin.Context) {
	var req service.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, &model.ValidationError{Msg: err.Error()})
		return
	}
	rec, err := api.service.Edit(c.Request.Context(), middleware.Caller(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (api *Api) renameInstance(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, &model.ValidationError{Msg: err.Error()})
		return
	}
	rec, err := api.service.Rename(c.Request.Context(), middleware.Caller(c), c.Param("id"), req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (api *Api) redeployInstance(c *gin.Context) {
	var req struct {
		Image string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, &model.ValidationError{Msg: err.Error()})
		return
	}
	rec, err := api.service.Redeploy(c.Request.Context(), middleware.Caller(c), c.Param("id"), req.Image)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (api *Api) reinstallInstance(c *gin.Context) {
	rec, err := api.service.Reinstall(c.Request.Context(), middleware.Caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (api *Api) suspendInstance(c *gin.Context) {
	rec, err := api.service.Suspend(c.Request.Context(), middleware.Caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (api *Api) unsuspendInstance(c *gin.Context) {
	rec, err := api.service.Unsuspend(c.Request.Context(), middleware.Caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (api *Api) deleteInstance(c *gin.Context) {
	if err := api.service.Delete(c.Request.Context(), middleware.Caller(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (api *Api) getInstanceState(c *gin.Context) {
	state, err := api.service.State(c.Request.Context(), middleware.Caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (api *Api) setInstanceState(c *gin.Context) {
	rec, err := api.service.SetState(c.Request.Context(), middleware.Caller(c), c.Param("id"), c.Param("state"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (api *Api) setWorkflow(c *gin.Context) {
	var blob json.RawMessage
	if err := c.ShouldBindJSON(&blob); err != nil {
		fail(c, &model.ValidationError{Msg: err.Error()})
		return
	}
	if err := api.service.SetWorkflow(c.Request.Context(), middleware.Caller(c), c.Param("id"), blob); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (api *Api) getWorkflow(c *gin.Context) {
	blob, err := api.service.GetWorkflow(c.Request.Context(), middleware.Caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", blob)
}
