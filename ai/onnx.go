package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	DefaultBatchSize    = 32
	DefaultBatchTimeout = 2 * time.Millisecond
)

// ErrEvaluatorClosed is returned for requests made after Close.
var ErrEvaluatorClosed = errors.New("evaluator closed")

type OnnxConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
}

type evalRequest struct {
	input []float32
	resp  chan evalResponse
}

type evalResponse struct {
	scores []float32
	err    error
}

// OnnxEvaluator scores boards with an ONNX model taking "input" [batch, 272]
// and producing "scores" [batch, 272]. Concurrent Evaluate calls are batched
// into a single session run.
type OnnxEvaluator struct {
	session  *ort.DynamicAdvancedSession
	requests chan evalRequest
	cfg      OnnxConfig

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var ortInitOnce sync.Once
var ortInitErr error

func NewOnnxEvaluator(modelPath string) (*OnnxEvaluator, error) {
	return NewOnnxEvaluatorWithConfig(modelPath, OnnxConfig{})
}

func NewOnnxEvaluatorWithConfig(modelPath string, cfg OnnxConfig) (*OnnxEvaluator, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}

	if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
		ort.SetSharedLibraryPath(p)
	}
	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to init ort: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	// the search evaluates from many goroutines, keep each run single threaded
	if err := options.SetIntraOpNumThreads(1); err != nil {
		return nil, err
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{"input"}, []string{"scores"}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ev := &OnnxEvaluator{
		session:  session,
		requests: make(chan evalRequest, cfg.BatchSize*2),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go ev.batchLoop()
	return ev, nil
}

// Close stops batching and releases the session.
func (c *OnnxEvaluator) Close() error {
	c.cancel()
	<-c.done
	return c.session.Destroy()
}

func (c *OnnxEvaluator) Evaluate(features []float32) ([]float32, error) {
	if len(features) != FeatureSize {
		return nil, fmt.Errorf("expected %d features, got %d", FeatureSize, len(features))
	}
	resp := make(chan evalResponse, 1)
	select {
	case c.requests <- evalRequest{input: features, resp: resp}:
	case <-c.ctx.Done():
		return nil, ErrEvaluatorClosed
	}
	select {
	case r := <-resp:
		return r.scores, r.err
	case <-c.ctx.Done():
		return nil, ErrEvaluatorClosed
	}
}

func (c *OnnxEvaluator) batchLoop() {
	defer close(c.done)

	batch := make([]float32, 0, c.cfg.BatchSize*FeatureSize)
	pending := make([]evalRequest, 0, c.cfg.BatchSize)

	ticker := time.NewTicker(c.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		c.runBatch(pending, batch)
		pending = pending[:0]
		batch = batch[:0]
	}

	for {
		select {
		case <-c.ctx.Done():
			c.failBatch(pending, ErrEvaluatorClosed)
			return
		case req := <-c.requests:
			pending = append(pending, req)
			batch = append(batch, req.input...)
			if len(pending) >= c.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (c *OnnxEvaluator) runBatch(pending []evalRequest, batch []float32) {
	n := int64(len(pending))

	in, err := ort.NewTensor(ort.NewShape(n, FeatureSize), batch)
	if err != nil {
		c.failBatch(pending, err)
		return
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(n, FeatureSize))
	if err != nil {
		c.failBatch(pending, err)
		return
	}
	defer out.Destroy()

	if err := c.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		c.failBatch(pending, err)
		return
	}

	data := out.GetData()
	for i, req := range pending {
		scores := make([]float32, FeatureSize)
		copy(scores, data[i*FeatureSize:(i+1)*FeatureSize])
		req.resp <- evalResponse{scores: scores}
	}
}

func (c *OnnxEvaluator) failBatch(pending []evalRequest, err error) {
	for _, req := range pending {
		req.resp <- evalResponse{err: err}
	}
}
