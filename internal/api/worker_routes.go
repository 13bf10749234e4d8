package api

import (
	"net/http"

	"distributed-kvstore/internal/worker"

	"github.com/gin-gonic/gin"
)

// WorkerHandler exposes one worker's Engine over HTTP exactly as spec.md
// §6 lists them.
type WorkerHandler struct {
	engine   *worker.Engine
	workerID string
}

// NewWorkerHandler creates a WorkerHandler over engine.
func NewWorkerHandler(workerID string, engine *worker.Engine) *WorkerHandler {
	return &WorkerHandler{engine: engine, workerID: workerID}
}

// Register mounts every worker route on r. metricsHandler, if non-nil, is
// mounted at /metrics.
func (h *WorkerHandler) Register(r *gin.Engine, metricsHandler http.Handler) {
	r.GET("/get", h.get)
	r.POST("/put", h.put)
	r.POST("/replicate", h.replicate)
	r.GET("/status", h.status)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}
}

func (h *WorkerHandler) get(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing key parameter"})
		return
	}
	value, ok := h.engine.Get(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

type putRequest struct {
	Key   string  `json:"key" binding:"required"`
	Value *string `json:"value"`
}

func (h *WorkerHandler) put(c *gin.Context) {
	var req putRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing key or value"})
		return
	}

	written, err := h.engine.Put(c.Request.Context(), req.Key, *req.Value)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "replicas_written": written})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "replicas_written": written})
}

type replicateRequest struct {
	Key   string  `json:"key" binding:"required"`
	Value *string `json:"value"`
}

func (h *WorkerHandler) replicate(c *gin.Context) {
	var req replicateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing key or value"})
		return
	}
	h.engine.Replicate(req.Key, *req.Value)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *WorkerHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"worker_id": h.workerID,
		"status":    "running",
		"num_keys":  h.engine.NumKeys(),
	})
}
