package bootstrap

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"pipeline_server/adapter/in/worker"
	"pipeline_server/config"
	"pipeline_server/internal/stream"
	"pipeline_server/pkg/logger"
)

// Worker runs the pipeline job pool plus the Redis Stream consumer
// feeding it.
type Worker struct {
	pool     *worker.Pool
	consumer *stream.Consumer
	deps     *Dependencies
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	zlog     zerolog.Logger
}

func NewWorker(cfg *config.Config, deps *Dependencies) *Worker {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "worker").Logger()

	defaultConfig := worker.DefaultPoolConfig()
	poolConfig := &worker.PoolConfig{
		Workers:          cfg.WorkerCount,
		QueueSize:        cfg.WorkerQueueSize,
		JobTimeout:       cfg.JobTimeout,
		JobTimeoutByType: defaultConfig.JobTimeoutByType,
		MaxRetries:       cfg.JobMaxRetries,
		RatePerSecond:    defaultConfig.RatePerSecond,
		BatchSize:        defaultConfig.BatchSize,
		WorkerChanSize:   defaultConfig.WorkerChanSize,
	}
	if poolConfig.Workers <= 0 {
		poolConfig.Workers = defaultConfig.Workers
	}
	if poolConfig.QueueSize <= 0 {
		poolConfig.QueueSize = defaultConfig.QueueSize
	}

	pool := worker.NewPool(deps.WorkerHandler(), poolConfig, zlog)

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		pool:   pool,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	if deps.Redis != nil {
		w.consumer = stream.NewConsumer(deps.Redis, &stream.ConsumerConfig{
			Group:                "pipeline-workers",
			Consumer:             cfg.WorkerID,
			Streams:              stream.Streams(),
			Handler:              &streamHandler{worker: w},
			Logger:               zlog,
			BatchSize:            cfg.ConsumerBatchSize,
			BlockTime:            time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
			PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
			MaxRetries:           cfg.ConsumerMaxRetries,
		})
	} else {
		logger.Warn("redis not available, worker only accepts direct submissions")
	}

	return w
}

// streamHandler feeds consumed stream messages into the worker pool.
type streamHandler struct {
	worker *Worker
}

func (h *streamHandler) Handle(ctx context.Context, streamName string, data []byte) error {
	var job stream.Job
	if err := json.Unmarshal(data, &job); err != nil {
		logger.WithError(err).WithField("stream", streamName).Error("failed to parse job payload")
		return err
	}

	jobType := job.Type
	if jobType == "" {
		jobType = streamToJobType(streamName)
	}

	msg := worker.NewMessage(jobType, job.Payload)
	if job.ID != "" {
		msg.ID = job.ID
	}

	// Backpressure: an unaccepted message stays pending in the stream
	// and is reclaimed later.
	if !h.worker.pool.Submit(msg) {
		return stream.ErrSubmitRejected
	}
	return nil
}

func streamToJobType(streamName string) string {
	switch streamName {
	case stream.StreamEmailProcess:
		return worker.JobEmailProcess
	case stream.StreamIndexJobs:
		return worker.JobIndexRebuild
	default:
		return streamName
	}
}

func (w *Worker) Start() {
	w.pool.Start()

	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.zlog.Info().Msg("starting redis stream consumer")
			if err := w.consumer.Run(w.ctx); err != nil && err != context.Canceled {
				w.zlog.Error().Err(err).Msg("redis stream consumer stopped")
			}
		}()
	}

	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()
	w.pool.Stop()
	w.wg.Wait()
}

func (w *Worker) Submit(msg *worker.Message) bool {
	return w.pool.Submit(msg)
}

func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}

func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
