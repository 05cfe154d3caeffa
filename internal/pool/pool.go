package pool

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
	"github.com/Harsh-BH/Sentinel/judge/internal/metrics"
	"github.com/Harsh-BH/Sentinel/judge/internal/usecase"
)

// WorkerPool manages a fixed-size pool of goroutines that judge submissions.
// Each worker judges one submission at a time.
type WorkerPool struct {
	size    int
	jobs    <-chan *domain.JudgeJobMessage
	judgeUC *usecase.JudgeSubmissionUsecase
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, jobs <-chan *domain.JudgeJobMessage, judgeUC *usecase.JudgeSubmissionUsecase, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    jobs,
		judgeUC: judgeUC,
		logger:  logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current jobs and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("Job channel closed", zap.Int("worker_id", id))
				return
			}
			p.handle(ctx, id, msg)
		}
	}
}

// handle judges one message and settles it with the broker. A panic is
// contained to the message so the worker keeps serving.
func (p *WorkerPool) handle(ctx context.Context, id int, msg *domain.JudgeJobMessage) {
	job := msg.Job
	log := p.logger.With(
		zap.Int("worker_id", id),
		zap.String("submission_id", job.SubmissionID.String()),
	)

	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Worker panic recovered", zap.Any("panic", r))
			p.settle(log, msg.Nack(false), "NACK")
		}
	}()

	log.Info("Worker judging submission", zap.String("language", string(job.Language)))

	isDuplicate, err := p.judgeUC.Execute(ctx, job)
	switch {
	case errors.Is(err, domain.ErrJudgingCancelled):
		// Interrupted by shutdown: requeue for another worker.
		log.Warn("Judging interrupted, requeueing", zap.Error(err))
		p.settle(log, msg.Nack(true), "NACK")
	case err != nil:
		log.Error("Judging failed", zap.Error(err))
		// Nack without requeue: failed jobs go to DLQ.
		// Requeuing a deterministic failure would cause an infinite loop.
		p.settle(log, msg.Nack(false), "NACK")
	case isDuplicate:
		log.Debug("Duplicate job skipped")
		// Duplicate → still ACK so the message is removed from the queue.
		p.settle(log, msg.Ack(), "ACK")
	default:
		p.settle(log, msg.Ack(), "ACK")
	}
}

func (p *WorkerPool) settle(log *zap.Logger, err error, op string) {
	if err != nil {
		log.Error("Failed to "+op+" message", zap.Error(err))
	}
}
