package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/researchapps/job-maker/internal/scheduler"
)

// HandlerHealth reports liveness and whether the catalog has been loaded.
func (rt *Router) HandlerHealth(c *gin.Context) {
	_, err := rt.store.Get()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"catalog_loaded": err == nil,
		"catalog_source": rt.store.Source(),
	})
}

// HandlerListClusters returns every cluster with its partitions.
func (rt *Router) HandlerListClusters(c *gin.Context) {
	cat, err := rt.store.Get()
	if err != nil {
		rt.catalogUnavailable(c, err)
		return
	}

	out := clusterElems(cat)
	c.JSON(http.StatusOK, Response{Count: len(out), Results: out})
}

// HandlerGetCluster returns one cluster.
func (rt *Router) HandlerGetCluster(c *gin.Context) {
	name := c.Param("cluster")
	cat, err := rt.store.Get()
	if err != nil {
		rt.catalogUnavailable(c, err)
		return
	}

	cluster, ok := cat.Cluster(name)
	if !ok {
		c.JSON(http.StatusNotFound, Response{Detail: "unknown cluster: " + name})
		return
	}
	c.JSON(http.StatusOK, clusterElem(name, cluster))
}

// HandlerCreateScript validates a JSON form and returns the generated script.
// Validation failures are 422 with the same body shape as a success.
func (rt *Router) HandlerCreateScript(c *gin.Context) {
	form := scheduler.NewForm()
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, Response{Detail: "invalid form: " + err.Error()})
		return
	}

	cat, err := rt.store.Get()
	if err != nil {
		rt.catalogUnavailable(c, err)
		return
	}

	res, err := scheduler.Generate(form, cat)
	resp := ScriptResponse{ValidationResult: scheduler.Summarize(res, err)}
	if err != nil {
		if scheduler.IsValidationError(err) {
			c.JSON(http.StatusUnprocessableEntity, resp)
			return
		}
		rt.logger.Error("script generation failed", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	resp.Partition = res.Partition
	resp.PartitionDefaulted = res.PartitionDefaulted
	resp.JobFile = res.JobFile()
	resp.Script = res.Script
	c.JSON(http.StatusOK, resp)
}

func (rt *Router) catalogUnavailable(c *gin.Context, err error) {
	rt.logger.Warn("catalog unavailable", slog.Any("err", err))
	c.JSON(http.StatusServiceUnavailable, Response{Detail: err.Error()})
}
