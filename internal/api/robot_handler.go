package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/command"
	"github.com/taoyao-code/amr-console/internal/robot"
)

// maxMapDocumentBytes 地图上传请求体上限
const maxMapDocumentBytes = 64 << 20

// RobotHandler AMR 操作台 API 处理器
type RobotHandler struct {
	mgr    *robot.Manager
	feed   TelemetryFeed // 可为 nil
	logger *zap.Logger
}

// NewRobotHandler 创建处理器
func NewRobotHandler(mgr *robot.Manager, feed TelemetryFeed, logger *zap.Logger) *RobotHandler {
	return &RobotHandler{mgr: mgr, feed: feed, logger: logger}
}

// commandResponse 命令执行结果
type commandResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	APIID     uint16          `json:"api_id"`
	LatencyMs int64           `json:"latency_ms"`
	Response  json.RawMessage `json:"response,omitempty"`
}

func (h *RobotHandler) respondResult(c *gin.Context, res *robot.Result, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, commandResponse{
		ID:        res.ID,
		Name:      res.Name,
		APIID:     res.APIID,
		LatencyMs: res.Latency.Milliseconds(),
		Response:  res.Body,
	})
}

// GetHost 当前 AMR 地址
func (h *RobotHandler) GetHost(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"host": h.mgr.Host()})
}

type setHostRequest struct {
	Host string `json:"host" binding:"required"`
}

// SetHost 设置 AMR 地址
func (h *RobotHandler) SetHost(c *gin.Context) {
	var req setHostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.mgr.SetHost(c.Request.Context(), req.Host); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"host": h.mgr.Host()})
}

type moveRequest struct {
	Station string `json:"station" binding:"required"`
}

// Move 导航到站点
func (h *RobotHandler) Move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.mgr.MoveToStation(c.Request.Context(), req.Station)
	h.respondResult(c, res, err)
}

type jogRequest struct {
	Direction string `json:"direction" binding:"required"`
}

// Jog 点动
func (h *RobotHandler) Jog(c *gin.Context) {
	var req jogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	d, err := command.ParseDirection(req.Direction)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.mgr.Jog(c.Request.Context(), d)
	h.respondResult(c, res, err)
}

type liftRequest struct {
	Action string `json:"action" binding:"required"`
}

// Lift 顶升
func (h *RobotHandler) Lift(c *gin.Context) {
	var req liftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := command.ParseLiftAction(req.Action)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.mgr.Lift(c.Request.Context(), a)
	h.respondResult(c, res, err)
}

type relocateRequest struct {
	Mode  string   `json:"mode"` // auto | manual
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Angle *float64 `json:"angle"`
}

// Relocate 重定位
func (h *RobotHandler) Relocate(c *gin.Context) {
	var req relocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var r robot.RelocateRequest
	switch strings.ToLower(req.Mode) {
	case "auto":
		r.Auto = true
	case "", "manual":
		if req.X == nil || req.Y == nil || req.Angle == nil {
			badRequest(c, "manual relocation requires x, y and angle")
			return
		}
		r.X, r.Y, r.Angle = *req.X, *req.Y, *req.Angle
	default:
		badRequest(c, "mode must be auto or manual")
		return
	}
	res, err := h.mgr.Relocate(c.Request.Context(), r)
	h.respondResult(c, res, err)
}

// LaserScan 激光数据
func (h *RobotHandler) LaserScan(c *gin.Context) {
	res, err := h.mgr.LaserScan(c.Request.Context())
	h.respondResult(c, res, err)
}

// ListMaps 地图列表
func (h *RobotHandler) ListMaps(c *gin.Context) {
	maps, err := h.mgr.ListMaps(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"maps": maps})
}

// DownloadMap 地图文档原样返回
func (h *RobotHandler) DownloadMap(c *gin.Context) {
	doc, err := h.mgr.DownloadMap(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

// UploadMap 请求体即地图文档
func (h *RobotHandler) UploadMap(c *gin.Context) {
	doc, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxMapDocumentBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload_too_large", "message": err.Error()})
		return
	}
	res, err := h.mgr.UploadMap(c.Request.Context(), json.RawMessage(doc))
	h.respondResult(c, res, err)
}

type slamStartRequest struct {
	SlamType     *int  `json:"slam_type"`
	RealTime     *bool `json:"real_time"`
	ScreenWidth  *int  `json:"screen_width"`
	ScreenHeight *int  `json:"screen_height"`
}

// StartSlam 启动建图，未给出的字段取默认值
func (h *RobotHandler) StartSlam(c *gin.Context) {
	opts := command.DefaultSlamOptions()
	if c.Request.ContentLength != 0 {
		var req slamStartRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err.Error())
			return
		}
		if req.SlamType != nil {
			opts.SlamType = *req.SlamType
		}
		if req.RealTime != nil {
			opts.RealTime = *req.RealTime
		}
		if req.ScreenWidth != nil {
			opts.ScreenWidth = *req.ScreenWidth
		}
		if req.ScreenHeight != nil {
			opts.ScreenHeight = *req.ScreenHeight
		}
	}
	res, err := h.mgr.StartSlam(c.Request.Context(), opts)
	h.respondResult(c, res, err)
}

// StopSlam 结束建图
func (h *RobotHandler) StopSlam(c *gin.Context) {
	res, err := h.mgr.StopSlam(c.Request.Context())
	h.respondResult(c, res, err)
}

// Subscribe 建立推送订阅
func (h *RobotHandler) Subscribe(c *gin.Context) {
	id, err := h.mgr.Subscribe(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription_id": id, "state": h.mgr.PushState().String()})
}

// Unsubscribe 结束推送订阅
func (h *RobotHandler) Unsubscribe(c *gin.Context) {
	h.mgr.Unsubscribe()
	c.JSON(http.StatusOK, gin.H{"state": h.mgr.PushState().String()})
}

// PushStatus 推送订阅状态
func (h *RobotHandler) PushStatus(c *gin.Context) {
	resp := gin.H{"state": h.mgr.PushState().String(), "ws_clients": h.mgr.Hub().Count()}
	if st, ok := h.mgr.PushStats(); ok {
		resp["stats"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// LatestTelemetry 最近一帧推送
func (h *RobotHandler) LatestTelemetry(c *gin.Context) {
	snap, err := h.mgr.LatestTelemetry(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"host":        snap.Host,
		"api_id":      snap.APIID,
		"received_at": snap.ReceivedAt.Format(time.RFC3339Nano),
		"data":        snap.Body,
	})
}

// RecentCommands 审计日志
func (h *RobotHandler) RecentCommands(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	logs, err := h.mgr.RecentCommands(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": logs, "count": len(logs)})
}

// Status 地址 + 推送 + 点动限流概览
func (h *RobotHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"host":       h.mgr.Host(),
		"push_state": h.mgr.PushState().String(),
		"jog":        h.mgr.JogStats(),

		"telemetry_dropped": h.mgr.TelemetryDropped(),
	})
}
