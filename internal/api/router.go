// Package api 抽号机监控接口：状态、抽号日志和虚拟按键
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/lotto-draw/internal/hardware"
	"github.com/wfunc/lotto-draw/internal/journal"
	"github.com/wfunc/lotto-draw/internal/lotto"
	"github.com/wfunc/lotto-draw/internal/middleware"
	"github.com/wfunc/lotto-draw/internal/repository"
	ws "github.com/wfunc/lotto-draw/internal/websocket"
	"go.uber.org/zap"
)

// Deps 路由依赖，除 Controller 外都可以为空
type Deps struct {
	DeviceName string
	Controller *lotto.Controller
	Port       *hardware.VirtualPort // 为空时不允许远程按键
	Panel      *hardware.Panel
	UART       *hardware.UART
	Repos      *repository.Manager // 为空表示未启用数据库
	Journal    *journal.Recorder
	Hub        *ws.Hub
	WSPath     string
	Logger     *zap.Logger
}

// Router API路由器
type Router struct {
	engine  *gin.Engine
	deps    Deps
	started time.Time
	log     *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.WSPath == "" {
		deps.WSPath = "/ws"
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.AccessLog(deps.Logger))

	r := &Router{
		engine:  engine,
		deps:    deps,
		started: time.Now(),
		log:     deps.Logger,
	}
	r.setupRoutes()
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/status", r.getStatus)
		v1.GET("/draws", r.listDraws)
		v1.GET("/rounds", r.listRounds)
		v1.GET("/rounds/:id", r.getRound)
		v1.GET("/rounds/:id/draws", r.roundDraws)
		v1.POST("/buttons/:button/press", r.pressButton)
	}

	if r.deps.Hub != nil {
		wsHandler := NewWebSocketHandler(r.deps.Hub, r.log)
		r.engine.GET(r.deps.WSPath, wsHandler.Serve)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
		"uptime":  time.Since(r.started).Round(time.Second).String(),
	}

	if r.deps.Repos != nil {
		sqlDB, err := r.deps.Repos.GetDB().DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "数据库连接失败",
			})
			return
		}
		resp["database"] = "ok"
	}

	c.JSON(http.StatusOK, resp)
}

// ServeHTTP 实现 http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
