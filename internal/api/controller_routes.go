package api

import (
	"errors"
	"net/http"

	"distributed-kvstore/internal/controller"
	"distributed-kvstore/internal/registry"

	"github.com/gin-gonic/gin"
)

// ControllerHandler exposes the coordinator's operations over HTTP exactly
// as spec.md §6 lists them.
type ControllerHandler struct {
	coord *controller.Coordinator
}

// NewControllerHandler creates a ControllerHandler over coord.
func NewControllerHandler(coord *controller.Coordinator) *ControllerHandler {
	return &ControllerHandler{coord: coord}
}

// Register mounts every controller route on r. metricsHandler, if non-nil,
// is mounted at /metrics — callers build it from their own
// prometheus.Registerer via promhttp.HandlerFor.
func (h *ControllerHandler) Register(r *gin.Engine, metricsHandler http.Handler) {
	r.POST("/register", h.register)
	r.POST("/heartbeat", h.heartbeat)
	r.GET("/query", h.query)
	r.POST("/notify_put", h.notifyPut)
	r.GET("/workers", h.workers)
	r.GET("/status", h.status)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}
}

// registerRequest is the POST /register body.
type registerRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
	Host     string `json:"host" binding:"required"`
	Port     int    `json:"port" binding:"required"`
}

func (h *ControllerHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.coord.Register(req.WorkerID, req.Host, req.Port)
	c.JSON(http.StatusCreated, gin.H{"success": true, "worker_id": req.WorkerID})
}

type heartbeatRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
}

func (h *ControllerHandler) heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.coord.Heartbeat(req.WorkerID); err != nil {
		if errors.Is(err, registry.ErrUnknownWorker) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown worker"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ControllerHandler) query(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing key parameter"})
		return
	}
	result, err := h.coord.Query(key)
	if err != nil {
		if errors.Is(err, controller.ErrNoWorkers) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no workers available"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":               result.Key,
		"primary_worker":    result.PrimaryURL,
		"primary_worker_id": result.PrimaryID,
		"replicas":          result.ReplicaURLs,
		"replica_ids":       result.ReplicaIDs,
	})
}

type notifyPutRequest struct {
	WorkerID string   `json:"worker_id"`
	Key      string   `json:"key" binding:"required"`
	Replicas []string `json:"replicas"`
}

func (h *ControllerHandler) notifyPut(c *gin.Context) {
	var req notifyPutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.coord.NotifyPut(req.Key, req.Replicas)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ControllerHandler) workers(c *gin.Context) {
	all := h.coord.Workers()
	active := 0
	out := make([]gin.H, 0, len(all))
	for _, w := range all {
		if w.Status == registry.StatusActive {
			active++
		}
		out = append(out, gin.H{
			"worker_id":      w.ID,
			"host":           w.Host,
			"port":           w.Port,
			"status":         string(w.Status),
			"last_heartbeat": w.LastHeartbeat,
		})
	}
	c.JSON(http.StatusOK, gin.H{"workers": out, "total": len(all), "active": active})
}

func (h *ControllerHandler) status(c *gin.Context) {
	st := h.coord.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":             "running",
		"total_workers":      st.TotalWorkers,
		"active_workers":     st.ActiveWorkers,
		"replication_factor": st.ReplicationFactor,
		"heartbeat_timeout":  st.HeartbeatTimeout.Seconds(),
	})
}
