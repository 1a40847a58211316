package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/lotto-draw/internal/errors"
	"github.com/wfunc/lotto-draw/internal/hardware"
	"github.com/wfunc/lotto-draw/internal/journal"
	"github.com/wfunc/lotto-draw/internal/lotto"
	"github.com/wfunc/lotto-draw/internal/middleware"
	"github.com/wfunc/lotto-draw/internal/repository"
	"go.uber.org/zap"
)

// 虚拟按键的按住时长
const (
	defaultHold = 80 * time.Millisecond
	maxHold     = 2 * time.Second
)

// StatusResponse 状态接口响应
type StatusResponse struct {
	Device     string               `json:"device"`
	Uptime     string               `json:"uptime"`
	Controller lotto.Status         `json:"controller"`
	Panel      *hardware.PanelFrame `json:"panel,omitempty"`
	Serial     *hardware.UARTStats  `json:"serial,omitempty"`
	Journal    *journal.Stats       `json:"journal,omitempty"`
	Clients    int                  `json:"ws_clients"`
}

// PressResponse 按键接口响应
type PressResponse struct {
	Button string       `json:"button"`
	Line   string       `json:"line"`
	Action lotto.Action `json:"action"`
	Hold   string       `json:"hold"`
	Bounce bool         `json:"bounce"`
	Status lotto.Status `json:"status"`
}

// Status 汇总控制器与外设状态，也供 WebSocket 使用
func (r *Router) Status() StatusResponse {
	resp := StatusResponse{
		Device:     r.deps.DeviceName,
		Uptime:     time.Since(r.started).Round(time.Second).String(),
		Controller: r.deps.Controller.Snapshot(),
	}
	if r.deps.Panel != nil {
		frame := r.deps.Panel.Frame()
		resp.Panel = &frame
	}
	if r.deps.UART != nil {
		stats := r.deps.UART.Stats()
		resp.Serial = &stats
	}
	if r.deps.Journal != nil {
		stats := r.deps.Journal.Stats()
		resp.Journal = &stats
	}
	if r.deps.Hub != nil {
		resp.Clients = r.deps.Hub.ClientCount()
	}
	return resp
}

func (r *Router) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.Status())
}

// listDraws 最近的抽号日志
func (r *Router) listDraws(c *gin.Context) {
	if !r.requireRepos(c) {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	records, err := r.deps.Repos.DrawRecord().ListRecent(c.Request.Context(), limit)
	if err != nil {
		middleware.Abort(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records, "limit": limit})
}

func (r *Router) listRounds(c *gin.Context) {
	if !r.requireRepos(c) {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	rounds, err := r.deps.Repos.DrawRound().ListRecent(c.Request.Context(), limit)
	if err != nil {
		middleware.Abort(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rounds, "limit": limit})
}

func (r *Router) getRound(c *gin.Context) {
	if !r.requireRepos(c) {
		return
	}

	round, err := r.deps.Repos.DrawRound().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	values := make([]int, 0, round.Count)
	for _, v := range round.ValueList() {
		values = append(values, int(v))
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "values": values})
}

// roundDraws 某一轮的全部日志，按发生顺序
func (r *Router) roundDraws(c *gin.Context) {
	if !r.requireRepos(c) {
		return
	}

	id := c.Param("id")
	records, err := r.deps.Repos.DrawRecord().ListByRound(c.Request.Context(), id)
	if err != nil {
		middleware.Abort(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery))
		return
	}
	if len(records) == 0 {
		middleware.Abort(c, apperrors.Newf(apperrors.ErrNotFound, "轮次 %s 没有记录", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"round_id": id, "items": records})
}

// pressButton 在虚拟端口上按一次键，请求在松开后返回
func (r *Router) pressButton(c *gin.Context) {
	if r.deps.Port == nil {
		middleware.Abort(c, apperrors.New(apperrors.ErrPortNotVirtual))
		return
	}

	name := c.Param("button")
	line, action, ok := r.resolveButton(name)
	if !ok {
		middleware.Abort(c, apperrors.Newf(apperrors.ErrUnknownButton, "按键 %q", name))
		return
	}

	hold := defaultHold
	if s := c.Query("hold"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 || d > maxHold {
			middleware.Abort(c, apperrors.Newf(apperrors.ErrInvalidParam, "hold 必须在 (0, %s] 之间", maxHold))
			return
		}
		hold = d
	}
	bounce := c.Query("bounce") == "true"

	if bounce {
		r.deps.Port.Bounce(line)
		hold = 0
	} else if err := r.deps.Port.Tap(c.Request.Context(), line, hold); err != nil {
		middleware.Abort(c, apperrors.Wrap(err, apperrors.ErrCanceled))
		return
	}

	r.log.Info("虚拟按键",
		zap.String("button", name),
		zap.String("line", line.String()),
		zap.Duration("hold", hold),
		zap.Bool("bounce", bounce))

	c.JSON(http.StatusAccepted, PressResponse{
		Button: name,
		Line:   line.String(),
		Action: action,
		Hold:   hold.String(),
		Bounce: bounce,
		Status: r.deps.Controller.Snapshot(),
	})
}

// resolveButton 按键可以用动作名（start/stop/reset）或线名（S2/S3/S4）指定
func (r *Router) resolveButton(name string) (lotto.Line, lotto.Action, bool) {
	keymap := r.deps.Controller.Keymap()
	if a, ok := lotto.ParseAction(strings.ToLower(name)); ok {
		line, ok := keymap.LineFor(a)
		return line, a, ok
	}
	for l := lotto.Line(0); l < lotto.NumLines; l++ {
		if strings.EqualFold(l.String(), name) {
			return l, keymap[l], true
		}
	}
	return 0, lotto.ActionNone, false
}

func (r *Router) requireRepos(c *gin.Context) bool {
	if r.deps.Repos == nil {
		middleware.Abort(c, apperrors.New(apperrors.ErrNotSupported, "未启用抽号日志"))
		return false
	}
	return true
}

func parseLimit(c *gin.Context) (int, bool) {
	s := c.Query("limit")
	if s == "" {
		return repository.DefaultListLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		middleware.Abort(c, apperrors.New(apperrors.ErrInvalidParam, "limit 必须是正整数"))
		return 0, false
	}
	return repository.ClampLimit(n), true
}
