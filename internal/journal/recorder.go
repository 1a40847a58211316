// Package journal 把状态机事件异步写入数据库，形成抽号审计记录。
// 记录只用于查询，不用于上电后的状态恢复。
package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/lotto-draw/internal/logger"
	"github.com/wfunc/lotto-draw/internal/lotto"
	"github.com/wfunc/lotto-draw/internal/models"
	"github.com/wfunc/lotto-draw/internal/repository"
	"go.uber.org/zap"
)

// DefaultBuffer 默认事件缓冲
const DefaultBuffer = 256

// Stats 写入统计
type Stats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"` // 缓冲满被丢弃
	Failed  uint64 `json:"failed"`  // 写库失败
}

// Recorder 抽号日志记录器
type Recorder struct {
	repos  *repository.Manager
	logger *zap.Logger

	events chan lotto.Event
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	// 只在写协程中访问
	currentRound string

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewRecorder 创建记录器并启动后台写入协程
func NewRecorder(repos *repository.Manager, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	r := &Recorder{
		repos:  repos,
		logger: logger.GetModuleLogger("journal"),
		events: make(chan lotto.Event, buffer),
		stopCh: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.backgroundWriter()
	return r
}

// Begin 登记上电时的轮次，应在 Subscribe 之前调用
func (r *Recorder) Begin(ctx context.Context, roundID string) error {
	if _, err := r.repos.DrawRound().Ensure(ctx, roundID); err != nil {
		return err
	}
	r.currentRound = roundID
	return nil
}

// Observe 事件观察者，在中断上下文中调用，只做非阻塞入队
func (r *Recorder) Observe(ev lotto.Event) {
	switch ev.Type {
	case lotto.EventCommit, lotto.EventFinish, lotto.EventReset, lotto.EventAbort:
	default:
		return
	}

	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Stats 写入统计
func (r *Recorder) Stats() Stats {
	return Stats{
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}

// Close 写完缓冲中的事件后退出
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
	})
}

func (r *Recorder) backgroundWriter() {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.events:
			r.write(ev)
		case <-r.stopCh:
			// 退出前写入剩余事件
			for {
				select {
				case ev := <-r.events:
					r.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ev lotto.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.record(ctx, ev); err != nil {
		r.failed.Add(1)
		r.logger.Error("写入抽号日志失败",
			zap.String("event", string(ev.Type)),
			zap.String("round_id", ev.RoundID),
			zap.Error(err))
		return
	}
	r.written.Add(1)
	logger.LogDrawEvent(string(ev.Type), ev.RoundID, zap.Uint8("value", ev.Value), zap.Int("count", ev.Count))
}

func (r *Recorder) record(ctx context.Context, ev lotto.Event) error {
	previous := r.currentRound
	err := r.repos.Transaction(ctx, func(records repository.DrawRecordRepository, rounds repository.DrawRoundRepository) error {
		// 复位时上一局若未结束则标记为被复位
		if ev.Type == lotto.EventReset && previous != "" && previous != ev.RoundID {
			prev, err := rounds.Ensure(ctx, previous)
			if err != nil {
				return err
			}
			if prev.Status == models.RoundStatusOpen {
				prev.Status = models.RoundStatusReset
				if err := rounds.Save(ctx, prev); err != nil {
					return err
				}
			}
		}

		round, err := rounds.Ensure(ctx, ev.RoundID)
		if err != nil {
			return err
		}

		switch ev.Type {
		case lotto.EventCommit:
			round.AppendValue(ev.Value)
			if err := rounds.Save(ctx, round); err != nil {
				return err
			}
		case lotto.EventFinish:
			if round.Status != models.RoundStatusFinished {
				at := ev.Time
				round.Status = models.RoundStatusFinished
				round.FinishedAt = &at
				if err := rounds.Save(ctx, round); err != nil {
					return err
				}
			}
		}

		return records.Create(ctx, recordOf(ev))
	})
	if err != nil {
		return err
	}
	r.currentRound = ev.RoundID
	return nil
}

// recordOf 事件转日志记录
func recordOf(ev lotto.Event) *models.DrawRecord {
	rec := &models.DrawRecord{
		RoundID:    ev.RoundID,
		Event:      models.DrawEventType(ev.Type),
		Value:      ev.Value,
		Count:      ev.Count,
		Error:      ev.Error,
		OccurredAt: ev.Time,
	}
	if ev.Action != lotto.ActionNone {
		rec.Action = ev.Action.String()
	}
	if ev.Byte != nil {
		b := *ev.Byte
		rec.SerialByte = &b
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now()
	}
	return rec
}
