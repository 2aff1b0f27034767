package job

import (
	"context"
	"log"
	"sync"
	"time"

	"marketplace/internal/metrics"
	"marketplace/internal/model"
	"marketplace/internal/repository"

	"gorm.io/gorm"
)

// Publisher 把消息投递到消息队列，mq.KafkaPublisher 实现了它
type Publisher interface {
	SendMessage(topic, key, value string) error
}

type OutboxSender struct {
	outboxRepo    *repository.OutboxRepository
	publisher     Publisher
	maxRetryCount int
	stopCh        chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
	interval      time.Duration
	batchSize     int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, maxRetryCount int) *OutboxSender {
	return &OutboxSender{
		outboxRepo:    repository.NewOutboxRepository(db),
		publisher:     publisher,
		maxRetryCount: maxRetryCount,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		interval:      100 * time.Millisecond,
		batchSize:     100,
	}
}

// Start 阻塞运行直到 ctx 取消或调用 Stop，同一个 sender 只能启动一次
func (s *OutboxSender) Start(ctx context.Context) {
	defer close(s.done)
	log.Println("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Done 在 Start 返回后关闭，此时不会再有进行中的批次
func (s *OutboxSender) Done() <-chan struct{} {
	return s.done
}

// processPendingMessages 返回本轮处理的消息数
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询消息失败: %v", err)
		return 0
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
	return len(messages)
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.outboxRepo.MarkSent(ctx, msg.ID); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
			return
		}
		metrics.OutboxMessages.WithLabelValues("sent").Inc()
		log.Printf("[OutboxSender] 消息发送成功: id=%d, topic=%s, key=%s", msg.ID, msg.Topic, msg.MessageKey)
		return
	}

	log.Printf("[OutboxSender] 消息发送失败: id=%d, err=%v", msg.ID, err)

	// 最后一次重试失败时直接标记失败，MarkAsFailed 同时累加重试次数
	if msg.RetryCount+1 >= s.maxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[OutboxSender] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
			return
		}
		metrics.OutboxMessages.WithLabelValues("failed").Inc()
		log.Printf("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d", msg.ID)
		return
	}

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Printf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
		return
	}
	metrics.OutboxMessages.WithLabelValues("retry").Inc()
}
