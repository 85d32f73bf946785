package inference

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	PolicySize = 6 // {left, straight, right} x {cruise, boost}
	ValueSize  = 1
)

const (
	DefaultBatchSize    = 64
	DefaultBatchTimeout = 1 * time.Millisecond
)

// ErrModelShape is returned when a feature vector or model output does not
// have the size this package expects.
var ErrModelShape = errors.New("inference: unexpected tensor shape")

// ErrClientClosed is returned by Predict after Close.
var ErrClientClosed = errors.New("inference: client closed")

type OnnxClientConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
	// FlushIdle runs a batch as soon as no more requests are queued instead
	// of waiting out BatchTimeout. Set it when a single caller predicts one
	// vector at a time, as the arena's tick loop does.
	FlushIdle bool
	UseCUDA   bool
}

type inferenceRequest struct {
	input    []float32
	respChan chan inferenceResponse
}

type inferenceResponse struct {
	policy []float32
	value  float32
	err    error
}

// RuntimeStats summarizes batching behaviour since the client started.
type RuntimeStats struct {
	TotalBatches  int64
	TotalItems    int64
	TotalRunNanos int64
	LastBatchSize int64
	QueueLen      int
	AvgBatchSize  float64
	AvgRunMs      float64
}

// OnnxClient batches concurrent Predict calls into single ONNX Runtime runs.
type OnnxClient struct {
	session      *ort.DynamicAdvancedSession
	requestsChan chan inferenceRequest
	cfg          OnnxClientConfig
	done         chan struct{}
	closeOnce    sync.Once
	run          func(requests []inferenceRequest, batchInput []float32)

	batches   atomic.Int64
	items     atomic.Int64
	runNanos  atomic.Int64
	lastBatch atomic.Int64
}

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func NewOnnxClient(modelPath string) (*OnnxClient, error) {
	return NewOnnxClientWithConfig(modelPath, OnnxClientConfig{BatchSize: DefaultBatchSize, BatchTimeout: DefaultBatchTimeout})
}

func NewOnnxClientWithConfig(modelPath string, cfg OnnxClientConfig) (*OnnxClient, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model %s: %w", modelPath, err)
	}

	if lib := sharedLibraryPath(); lib != "" {
		ort.SetSharedLibraryPath(lib)
	}

	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("init onnxruntime: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer options.Destroy()

	// Many rounds share one process; keep each session single-threaded.
	options.SetIntraOpNumThreads(1)
	options.SetInterOpNumThreads(1)

	if cfg.UseCUDA {
		enableCUDA(options)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{"input"}, []string{"policy", "value"}, options)
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", modelPath, err)
	}

	return startClient(cfg, session, nil), nil
}

// startClient starts the batch loop. A nil run uses the ORT session.
func startClient(cfg OnnxClientConfig, session *ort.DynamicAdvancedSession, run func([]inferenceRequest, []float32)) *OnnxClient {
	c := &OnnxClient{
		session:      session,
		cfg:          cfg,
		requestsChan: make(chan inferenceRequest, cfg.BatchSize*2),
		done:         make(chan struct{}),
		run:          run,
	}
	if c.run == nil {
		c.run = c.runBatch
	}
	go c.batchLoop()
	return c
}

// sharedLibraryPath returns ORT_SHARED_LIBRARY_PATH, or a libonnxruntime
// found in the working directory on Linux. Empty means the loader default.
func sharedLibraryPath() string {
	if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
		return p
	}
	if runtime.GOOS != "linux" {
		return ""
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for _, name := range []string{"libonnxruntime.so", "libonnxruntime.so.1"} {
		if p := filepath.Join(cwd, name); fileExists(p) {
			return p
		}
	}
	return ""
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// enableCUDA appends the CUDA provider, staying on CPU when it is missing.
func enableCUDA(options *ort.SessionOptions) {
	cudaOptions, err := ort.NewCUDAProviderOptions()
	if err != nil {
		slog.Warn("cuda options unavailable", "error", err)
		return
	}
	defer cudaOptions.Destroy()
	if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
		slog.Warn("cuda provider unavailable", "error", err)
		return
	}
	slog.Info("cuda provider enabled")
}

// Close stops the batch loop and releases the session.
func (c *OnnxClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.session != nil {
			err = c.session.Destroy()
		}
	})
	return err
}

// Stats reports batching counters.
func (c *OnnxClient) Stats() RuntimeStats {
	st := RuntimeStats{
		TotalBatches:  c.batches.Load(),
		TotalItems:    c.items.Load(),
		TotalRunNanos: c.runNanos.Load(),
		LastBatchSize: c.lastBatch.Load(),
		QueueLen:      len(c.requestsChan),
	}
	if st.TotalBatches > 0 {
		st.AvgBatchSize = float64(st.TotalItems) / float64(st.TotalBatches)
		st.AvgRunMs = float64(st.TotalRunNanos) / 1e6 / float64(st.TotalBatches)
	}
	return st
}

// Predict queues one feature vector and waits for its batch to run. It
// returns the policy logits and the value estimate.
func (c *OnnxClient) Predict(features []float32) ([]float32, float32, error) {
	if len(features) != InputSize {
		return nil, 0, fmt.Errorf("%w: input has %d values, want %d", ErrModelShape, len(features), InputSize)
	}
	input := make([]float32, InputSize)
	copy(input, features)

	select {
	case <-c.done:
		return nil, 0, ErrClientClosed
	default:
	}

	respChan := make(chan inferenceResponse, 1)
	select {
	case c.requestsChan <- inferenceRequest{input: input, respChan: respChan}:
	case <-c.done:
		return nil, 0, ErrClientClosed
	}

	select {
	case resp := <-respChan:
		return resp.policy, resp.value, resp.err
	case <-c.done:
		return nil, 0, ErrClientClosed
	}
}

func (c *OnnxClient) batchLoop() {
	batchInput := make([]float32, 0, c.cfg.BatchSize*InputSize)
	requests := make([]inferenceRequest, 0, c.cfg.BatchSize)

	ticker := time.NewTicker(c.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		c.run(requests, batchInput)
		requests = requests[:0]
		batchInput = batchInput[:0]
	}

	for {
		select {
		case <-c.done:
			c.failBatch(requests, ErrClientClosed)
			return
		case req := <-c.requestsChan:
			requests = append(requests, req)
			batchInput = append(batchInput, req.input...)
			if len(requests) >= c.cfg.BatchSize || (c.cfg.FlushIdle && len(c.requestsChan) == 0) {
				flush()
			}
		case <-ticker.C:
			if len(requests) > 0 {
				flush()
			}
		}
	}
}

func (c *OnnxClient) runBatch(requests []inferenceRequest, batchInput []float32) {
	n := int64(len(requests))
	start := time.Now()

	inputTensor, err := ort.NewTensor(ort.NewShape(n, InputSize), batchInput)
	if err != nil {
		c.failBatch(requests, err)
		return
	}
	defer inputTensor.Destroy()

	policyTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, PolicySize))
	if err != nil {
		c.failBatch(requests, err)
		return
	}
	defer policyTensor.Destroy()

	valueTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, ValueSize))
	if err != nil {
		c.failBatch(requests, err)
		return
	}
	defer valueTensor.Destroy()

	if err := c.session.Run([]ort.Value{inputTensor}, []ort.Value{policyTensor, valueTensor}); err != nil {
		c.failBatch(requests, err)
		return
	}

	policyData := policyTensor.GetData()
	valueData := valueTensor.GetData()
	if len(policyData) < len(requests)*PolicySize || len(valueData) < len(requests)*ValueSize {
		c.failBatch(requests, fmt.Errorf("%w: got %d policy values for %d rows", ErrModelShape, len(policyData), n))
		return
	}

	c.batches.Add(1)
	c.items.Add(n)
	c.runNanos.Add(time.Since(start).Nanoseconds())
	c.lastBatch.Store(n)

	for i, req := range requests {
		policy := make([]float32, PolicySize)
		copy(policy, policyData[i*PolicySize:(i+1)*PolicySize])
		req.respChan <- inferenceResponse{policy: policy, value: valueData[i*ValueSize]}
	}
}

func (c *OnnxClient) failBatch(requests []inferenceRequest, err error) {
	for _, req := range requests {
		req.respChan <- inferenceResponse{err: err}
	}
}
