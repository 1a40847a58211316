package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/lotto-draw/internal/api"
	"github.com/wfunc/lotto-draw/internal/config"
	"github.com/wfunc/lotto-draw/internal/database"
	apperrors "github.com/wfunc/lotto-draw/internal/errors"
	"github.com/wfunc/lotto-draw/internal/hardware"
	"github.com/wfunc/lotto-draw/internal/irq"
	"github.com/wfunc/lotto-draw/internal/journal"
	"github.com/wfunc/lotto-draw/internal/logger"
	"github.com/wfunc/lotto-draw/internal/lotto"
	"github.com/wfunc/lotto-draw/internal/repository"
	ws "github.com/wfunc/lotto-draw/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 抽号机守护进程
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	board   *hardware.Board
	ctrl    *lotto.Controller
	repos   *repository.Manager
	journal *journal.Recorder
	hub     *ws.Hub
	http    *http.Server

	shutdownCh chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("抽号机启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("抽号机关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("抽号机已安全关闭")
}

// NewServer 创建守护进程实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 初始化组件并上电
func (s *Server) Start() error {
	s.logger.Info("正在启动抽号机...",
		zap.String("version", Version),
		zap.String("device", s.cfg.Device.Name),
		zap.String("config", config.ConfigFileUsed()))

	if err := s.initDatabase(); err != nil {
		return err
	}
	if err := s.initController(); err != nil {
		return err
	}
	s.startServices()

	config.Watch(s.reloadConfig)

	s.logger.Info("抽号机启动成功",
		zap.Bool("serial", s.cfg.Serial.Enabled),
		zap.Bool("database", s.repos != nil),
		zap.Bool("server", s.http != nil))
	return nil
}

// initDatabase 数据库只用于抽号日志，未启用时跳过
func (s *Server) initDatabase() error {
	if !s.cfg.Database.Enabled {
		s.logger.Info("未启用抽号日志")
		return nil
	}

	if err := database.Init(&s.cfg.Database); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	db := database.GetDB()

	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}
	if !database.IsConnected(db) {
		return apperrors.New(apperrors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.repos = repository.NewManager(db)
	s.journal = journal.NewRecorder(s.repos, 256)
	return nil
}

// initController 组装外设和控制器，订阅者必须在 Boot 之前注册
func (s *Server) initController() error {
	ic := irq.NewController()
	board, err := hardware.NewBoard(ic, s.cfg)
	if err != nil {
		return err
	}
	s.board = board

	ctrl, err := lotto.NewController(ic, board.Peripherals(), lotto.Options{
		Logger: logger.GetModuleLogger("lotto"),
	})
	if err != nil {
		board.Close()
		return err
	}
	s.ctrl = ctrl

	s.hub = ws.NewHub(ws.Config{
		PingInterval: s.cfg.WebSocket.PingInterval,
		WriteTimeout: s.cfg.WebSocket.WriteTimeout,
		SendBuffer:   s.cfg.WebSocket.SendBuffer,
	}, logger.GetModuleLogger("websocket"))
	ctrl.Subscribe(s.hub.Observe)

	board.UART.SetTap(func(b byte) {
		s.hub.Broadcast(ws.NewMessage(ws.MessageTypeSerial, gin.H{
			"byte": b,
			"hex":  fmt.Sprintf("0x%02X", b),
		}))
	})

	if s.journal != nil {
		ctrl.Subscribe(s.journal.Observe)
	}

	ctrl.Boot()

	if s.journal != nil {
		if err := s.journal.Begin(s.ctx, ctrl.Snapshot().RoundID); err != nil {
			s.logger.Warn("记录首轮失败", zap.Error(err))
		}
	}
	return nil
}

// startServices 启动 Hub 和监控接口
func (s *Server) startServices() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.ctx)
	}()

	if !s.cfg.Server.Enabled {
		return
	}

	gin.SetMode(s.cfg.Server.Mode)
	deps := api.Deps{
		DeviceName: s.cfg.Device.Name,
		Controller: s.ctrl,
		Panel:      s.board.Panel,
		UART:       s.board.UART,
		Repos:      s.repos,
		Journal:    s.journal,
		Hub:        s.hub,
		WSPath:     s.cfg.WebSocket.Path,
		Logger:     logger.GetModuleLogger("api"),
	}
	if s.cfg.Device.Simulate {
		deps.Port = s.board.Port
	}
	router := api.NewRouter(deps)
	s.hub.SetStatusProvider(func() interface{} { return router.Status() })

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	s.http = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("监控接口已启动", zap.String("address", addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("监控接口异常退出", zap.Error(err))
		}
	}()
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	close(s.shutdownCh)
}

// Shutdown 先停中断再关闭外设，保证最后一个字节已写出
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.ctrl.Halt()

	if s.http != nil {
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("监控接口关闭失败", zap.Error(err))
		}
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return apperrors.New(apperrors.ErrTimeout, "关闭超时")
	}

	s.closeComponents()

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}
	return nil
}

// closeComponents 关闭组件
func (s *Server) closeComponents() {
	if err := s.board.Close(); err != nil {
		s.logger.Error("关闭串口失败", zap.Error(err))
	}
	stats := s.board.UART.Stats()
	s.logger.Info("串口统计",
		zap.Uint64("sent", stats.Sent),
		zap.Uint64("dropped", stats.Dropped),
		zap.Uint64("failed", stats.Failed))

	if s.journal != nil {
		s.journal.Close()
	}
	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
}

// reloadConfig 只有日志级别可以在运行时调整，定时器与串口需要重启
func (s *Server) reloadConfig(newCfg *config.Config) {
	if newCfg.Log.Level != s.cfg.Log.Level {
		logger.SetLevel(newCfg.Log.Level)
		s.logger.Info("日志级别已更新", zap.String("level", newCfg.Log.Level))
	}
	if newCfg.Timers != s.cfg.Timers || newCfg.Serial != s.cfg.Serial || newCfg.Entropy != s.cfg.Entropy {
		s.logger.Warn("定时器、随机源或串口配置已修改，重启后生效")
	}
	s.cfg.Log = newCfg.Log
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("抽号机控制器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("抽号机控制器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  lottod [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  LOTTO_SERIAL_PORT      串口设备")
	fmt.Println("  LOTTO_SERVER_PORT      监控接口端口")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  lottod -config=/etc/lotto/config.yaml")
	fmt.Println("  lottod -version")
}
