package analytics

import (
	"Shortly-Backend/internal/domain"
	"Shortly-Backend/pkg/useragent"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

var (
	ErrNotStarted = errors.New("processor not started")
	ErrQueueFull  = errors.New("analytics queue is full")
)

// ClickData is one redirect waiting to be turned into a click record.
type ClickData struct {
	LinkID    int64
	ShortCode string
	IPAddress string
	UserAgent string
	Referer   string
	ClickedAt time.Time
}

// ClickRecorder persists click records.
type ClickRecorder interface {
	RecordClick(ctx context.Context, click *domain.Click) error
}

// DeviceParser classifies a User-Agent string.
type DeviceParser interface {
	Parse(userAgent string) useragent.DeviceInfo
}

// ProcessorConfig holds configuration for the analytics processor
type ProcessorConfig struct {
	WorkerCount     int           // Number of worker goroutines
	BufferSize      int           // Size of the job queue buffer
	RetryAttempts   int           // Number of attempts per click
	RetryDelay      time.Duration // Base delay between retries, doubled each attempt
	ShutdownTimeout time.Duration // Time to wait for the queue to drain on Stop
	AttemptTimeout  time.Duration // Deadline for a single store write
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:     3,
		BufferSize:      1000,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
		ShutdownTimeout: 30 * time.Second,
		AttemptTimeout:  10 * time.Second,
	}
}

// Stats is a snapshot of processor counters.
type Stats struct {
	Started       bool  `json:"started"`
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	Workers       int   `json:"workers"`
	Processed     int64 `json:"processed"`
	Failed        int64 `json:"failed"`
	Dropped       int64 `json:"dropped"`
}

// Processor records click details asynchronously so redirects never wait on
// analytics writes. Click counts are maintained elsewhere and never depend on it.
type Processor struct {
	config   ProcessorConfig
	recorder ClickRecorder
	parser   DeviceParser
	log      *zap.Logger
	jobQueue chan *ClickData
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.RWMutex
	started bool
	stopped bool

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewProcessor creates a new analytics processor
func NewProcessor(recorder ClickRecorder, parser DeviceParser, log *zap.Logger, config ProcessorConfig) *Processor {
	defaults := DefaultConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = defaults.AttemptTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		config:   config,
		recorder: recorder,
		parser:   parser,
		log:      log,
		jobQueue: make(chan *ClickData, config.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker pool
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("processor already started")
	}
	if p.stopped {
		return fmt.Errorf("processor already stopped")
	}

	p.log.Info("starting analytics processor",
		zap.Int("workers", p.config.WorkerCount),
		zap.Int("buffer_size", p.config.BufferSize),
		zap.Int("retry_attempts", p.config.RetryAttempts),
	)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.started = true
	return nil
}

// Stop stops accepting clicks and waits for queued ones to be written. When the
// shutdown timeout expires, in-flight writes are cancelled.
func (p *Processor) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.started = false
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.log.Info("stopping analytics processor", zap.Int("pending", len(p.jobQueue)))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var timeout <-chan time.Time
	if p.config.ShutdownTimeout > 0 {
		timer := time.NewTimer(p.config.ShutdownTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-done:
		p.cancel()
		p.log.Info("analytics processor stopped gracefully")
		return nil
	case <-timeout:
		p.cancel()
		<-done
		p.log.Warn("analytics processor shutdown timeout reached", zap.Int("abandoned", len(p.jobQueue)))
		return fmt.Errorf("analytics shutdown timeout reached")
	}
}

// SubmitClick queues a click without blocking. A full queue drops the click.
func (p *Processor) SubmitClick(clickData *ClickData) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return ErrNotStarted
	}

	select {
	case p.jobQueue <- clickData:
		return nil
	default:
		p.dropped.Add(1)
		p.log.Error("analytics queue is full, dropping click data",
			zap.String("short_code", clickData.ShortCode),
			zap.Int("queue_size", len(p.jobQueue)),
		)
		return ErrQueueFull
	}
}

// GetStats returns processor statistics
func (p *Processor) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Stats{
		Started:       p.started,
		QueueLength:   len(p.jobQueue),
		QueueCapacity: cap(p.jobQueue),
		Workers:       p.config.WorkerCount,
		Processed:     p.processed.Load(),
		Failed:        p.failed.Load(),
		Dropped:       p.dropped.Load(),
	}
}

func (p *Processor) worker(workerID int) {
	defer p.wg.Done()

	log := p.log.With(zap.Int("worker_id", workerID))
	log.Debug("analytics worker started")

	for clickData := range p.jobQueue {
		if p.ctx.Err() != nil {
			return
		}
		p.processClickWithRetry(log, clickData)
	}

	log.Debug("analytics worker stopped")
}

func (p *Processor) processClickWithRetry(log *zap.Logger, clickData *ClickData) {
	click := p.buildClick(clickData)

	var lastErr error
retry:
	for attempt := 1; attempt <= p.config.RetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(p.ctx, p.config.AttemptTimeout)
		err := p.recorder.RecordClick(ctx, click)
		cancel()

		if err == nil {
			p.processed.Add(1)
			if attempt > 1 {
				log.Info("click processing succeeded after retry",
					zap.String("short_code", clickData.ShortCode),
					zap.Int("attempt", attempt),
				)
			}
			return
		}

		lastErr = err
		log.Warn("click processing failed",
			zap.String("short_code", clickData.ShortCode),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.config.RetryAttempts),
			zap.Error(err),
		)

		if attempt == p.config.RetryAttempts {
			break
		}

		// exponential backoff
		delay := p.config.RetryDelay * time.Duration(1<<(attempt-1))
		select {
		case <-time.After(delay):
		case <-p.ctx.Done():
			lastErr = p.ctx.Err()
			break retry
		}
	}

	p.failed.Add(1)
	log.Error("click processing failed after all retries",
		zap.String("short_code", clickData.ShortCode),
		zap.Int("attempts", p.config.RetryAttempts),
		zap.Error(lastErr),
	)
}

func (p *Processor) buildClick(clickData *ClickData) *domain.Click {
	info := useragent.DeviceInfo{
		DeviceType: useragent.DeviceUnknown,
		Browser:    useragent.DeviceUnknown,
		OS:         useragent.DeviceUnknown,
	}
	if p.parser != nil {
		info = p.parser.Parse(clickData.UserAgent)
	}

	clickedAt := clickData.ClickedAt
	if clickedAt.IsZero() {
		clickedAt = time.Now()
	}

	click := &domain.Click{
		LinkID:     clickData.LinkID,
		DeviceType: info.DeviceType,
		ClickedAt:  clickedAt,
	}
	if info.Browser != useragent.DeviceUnknown {
		click.Browser = optional(info.Browser, domain.MaxBrowserLength)
	}
	if info.OS != useragent.DeviceUnknown {
		click.OS = optional(info.OS, domain.MaxOSLength)
	}
	// client-controlled headers are cut to the column sizes of clicks
	click.IPAddress = optional(clickData.IPAddress, domain.MaxIPAddressLength)
	click.UserAgent = optional(clickData.UserAgent, 0)
	click.Referer = optional(clickData.Referer, domain.MaxRefererLength)
	return click
}

// optional returns nil for an empty value, otherwise the value cut to maxRunes
// characters (0 means no limit).
func optional(value string, maxRunes int) *string {
	if value == "" {
		return nil
	}
	if maxRunes > 0 && utf8.RuneCountInString(value) > maxRunes {
		runes := []rune(value)
		value = string(runes[:maxRunes])
	}
	return &value
}
