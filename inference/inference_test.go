package inference

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kelvin0611/Mini-io-games/game"
)

func sensorWorld(t *testing.T) (*game.World, *game.Snake) {
	t.Helper()
	cfg := game.DefaultConfig()
	cfg.BotCount = 0
	cfg.MaxFood = 0
	w, err := game.NewEmptyWorld(cfg, 1)
	if err != nil {
		t.Fatalf("NewEmptyWorld: %v", err)
	}
	self := &game.Snake{
		ID: 1, Name: "self", Score: 10, Speed: 4,
		Path:    []game.Point{{}},
		Control: game.AIControlled{State: &game.AIState{}},
	}
	w.Bots = []*game.Snake{self}
	return w, self
}

func near(a float32, b float64) bool { return math.Abs(float64(a)-b) < 1e-4 }

func TestEncode_WallRay(t *testing.T) {
	w, self := sensorWorld(t)
	self.Pos = game.Point{X: 1800}
	feats := Encode(w, self, 600)
	defer PutFeatures(feats)
	f := *feats

	if got := f[0*RayChannels+chWall]; !near(got, 1-200.0/600) {
		t.Fatalf("forward wall proximity=%v want %v", got, 1-200.0/600)
	}
	if got := f[8*RayChannels+chWall]; got != 0 {
		t.Fatalf("rear wall is 3800 away, proximity=%v want 0", got)
	}
}

func TestEncode_FoodAndTrailRays(t *testing.T) {
	w, self := sensorWorld(t)
	w.DropFood(game.Point{X: 100}, 1, "#fff")
	other := &game.Snake{
		ID: 2, Name: "other", Pos: game.Point{Y: 200}, Score: 10,
		Path:    []game.Point{{Y: 200}},
		Control: game.AIControlled{State: &game.AIState{}},
	}
	w.Bots = append(w.Bots, other)

	f := make([]float32, InputSize)
	EncodeInto(f, w, self, 600)

	if got := f[0*RayChannels+chFood]; !near(got, 1-100.0/600) {
		t.Fatalf("food proximity=%v", got)
	}
	if got := f[1*RayChannels+chFood]; got != 0 {
		t.Fatalf("food leaked into the neighbouring ray: %v", got)
	}
	if got := f[4*RayChannels+chTrail]; !near(got, 1-200.0/600) {
		t.Fatalf("trail proximity on the +y ray=%v", got)
	}
	if got := f[12*RayChannels+chTrail]; got != 0 {
		t.Fatalf("trail seen behind on the -y ray: %v", got)
	}

	base := NumRays * RayChannels
	if !near(f[base], 0.01) || !near(f[base+1], 0.5) || f[base+2] != 0 {
		t.Fatalf("scalars=%v", f[base:])
	}

	other.Dead = true
	EncodeInto(f, w, self, 600)
	if f[4*RayChannels+chTrail] != 0 {
		t.Fatalf("dead snake still sensed")
	}
}

func TestEncodeInto_NilSelf(t *testing.T) {
	w, _ := sensorWorld(t)
	f := make([]float32, InputSize)
	f[0] = 7
	EncodeInto(f, w, nil, 600)
	for i, v := range f {
		if v != 0 {
			t.Fatalf("f[%d]=%v want zeroed buffer", i, v)
		}
	}
}

type fakePredictor struct {
	logits []float32
	err    error
	calls  int
}

func (f *fakePredictor) Predict(features []float32) ([]float32, float32, error) {
	f.calls++
	if len(features) != InputSize {
		return nil, 0, ErrModelShape
	}
	return f.logits, 0, f.err
}

type fixedPolicy struct {
	in    game.Intent
	calls int
}

func (p *fixedPolicy) Steer(*game.World, *game.Snake, *game.AIState, *rand.Rand) game.Intent {
	p.calls++
	return p.in
}

func TestOnnxPolicy_DecodesArgmax(t *testing.T) {
	w, self := sensorWorld(t)
	self.Heading = 1
	model := &fakePredictor{logits: []float32{0, 0.1, 0, 0, 0.9, 0.2}}
	fb := &fixedPolicy{}
	p := NewOnnxPolicy(model, fb)

	st := self.AI()
	in := p.Steer(w, self, st, w.Rand)
	if !in.Boost || in.TargetHeading != 1 {
		t.Fatalf("intent=%+v want boost straight ahead", in)
	}
	if st.TargetHeading != 1 || st.Timer != 1 {
		t.Fatalf("state=%+v", *st)
	}
	if fb.calls != 0 || model.calls != 1 {
		t.Fatalf("fallback=%d model=%d", fb.calls, model.calls)
	}
}

func TestOnnxPolicy_FallsBack(t *testing.T) {
	for _, model := range []*fakePredictor{
		{err: errors.New("boom")},
		{logits: []float32{1, 2}},
	} {
		w, self := sensorWorld(t)
		fb := &fixedPolicy{in: game.Intent{TargetHeading: 2}}
		p := NewOnnxPolicy(model, fb)
		in := p.Steer(w, self, self.AI(), w.Rand)
		if in.TargetHeading != 2 || fb.calls != 1 || p.Failures() != 1 {
			t.Fatalf("intent=%+v fallback calls=%d failures=%d", in, fb.calls, p.Failures())
		}
	}
}

func TestDecodeAction(t *testing.T) {
	if in := DecodeAction(0, 0); math.Abs(in.TargetHeading+math.Pi/4) > 1e-12 || in.Boost {
		t.Fatalf("left=%+v", in)
	}
	if in := DecodeAction(5, math.Pi); math.Abs(in.TargetHeading-(-3*math.Pi/4)) > 1e-12 || !in.Boost {
		t.Fatalf("boost right across the seam=%+v", in)
	}
	if in := DecodeAction(42, 0.5); in.TargetHeading != 0.5 || in.Boost {
		t.Fatalf("out of range action=%+v want straight", in)
	}
	if Argmax([]float32{3, 3, 1}) != 0 {
		t.Fatalf("ties should keep the first index")
	}
}

func TestClientRejectsWrongInputSize(t *testing.T) {
	_, _, err := (&OnnxClient{}).Predict(make([]float32, 3))
	if !errors.Is(err, ErrModelShape) {
		t.Fatalf("err=%v want ErrModelShape", err)
	}
}

// echoRun answers each request with its first feature as logit 0 and
// records the batch sizes it was handed.
type echoRun struct {
	mu      sync.Mutex
	batches []int
}

func (e *echoRun) run(requests []inferenceRequest, _ []float32) {
	e.mu.Lock()
	e.batches = append(e.batches, len(requests))
	e.mu.Unlock()
	for _, req := range requests {
		policy := make([]float32, PolicySize)
		policy[0] = req.input[0]
		req.respChan <- inferenceResponse{policy: policy}
	}
}

func (e *echoRun) sizes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.batches...)
}

func predictWithin(t *testing.T, c *OnnxClient, first float32, limit time.Duration) []float32 {
	t.Helper()
	type result struct {
		logits []float32
		err    error
	}
	done := make(chan result, 1)
	go func() {
		in := make([]float32, InputSize)
		in[0] = first
		logits, _, err := c.Predict(in)
		done <- result{logits, err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Predict: %v", r.err)
		}
		return r.logits
	case <-time.After(limit):
		t.Fatalf("Predict did not return within %v", limit)
	}
	return nil
}

func TestClient_FlushIdleSkipsBatchTimeout(t *testing.T) {
	e := &echoRun{}
	c := startClient(OnnxClientConfig{BatchSize: 64, BatchTimeout: time.Hour, FlushIdle: true}, nil, e.run)
	defer c.Close()

	// Sequential callers, one per bot, each answered without waiting.
	for i := 0; i < 15; i++ {
		logits := predictWithin(t, c, float32(i), 5*time.Second)
		if logits[0] != float32(i) {
			t.Fatalf("bot %d got logits %v", i, logits)
		}
	}
	if got := e.sizes(); len(got) != 15 {
		t.Fatalf("batches=%v want 15 single runs", got)
	}
}

func TestClient_BatchesConcurrentCallers(t *testing.T) {
	e := &echoRun{}
	c := startClient(OnnxClientConfig{BatchSize: 4, BatchTimeout: time.Hour}, nil, e.run)
	defer c.Close()

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func(i int) {
			in := make([]float32, InputSize)
			in[0] = float32(i)
			_, _, err := c.Predict(in)
			errs <- err
		}(i)
	}
	for i := 0; i < 4; i++ {
		select {
		case err := <-errs:
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("batch of 4 never ran")
		}
	}
	if got := e.sizes(); len(got) != 1 || got[0] != 4 {
		t.Fatalf("batches=%v want one batch of 4", got)
	}
}

func TestClient_PredictAfterClose(t *testing.T) {
	c := startClient(OnnxClientConfig{BatchSize: 1, BatchTimeout: time.Hour}, nil, (&echoRun{}).run)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, err := c.Predict(make([]float32, InputSize)); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("err=%v want ErrClientClosed", err)
	}
}

func TestOnnxClient_Model(t *testing.T) {
	path := os.Getenv("SNEK_ONNX_MODEL")
	if path == "" {
		t.Skip("SNEK_ONNX_MODEL not set")
	}
	c, err := NewOnnxClient(path)
	if err != nil {
		t.Fatalf("NewOnnxClient: %v", err)
	}
	defer c.Close()

	w, self := sensorWorld(t)
	feats := Encode(w, self, DefaultRange)
	defer PutFeatures(feats)
	logits, value, err := c.Predict(*feats)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	t.Logf("logits=%v value=%v stats=%+v", logits, value, c.Stats())
	if len(logits) != PolicySize {
		t.Fatalf("logits=%d want %d", len(logits), PolicySize)
	}
}

func BenchmarkEncode(b *testing.B) {
	w, err := game.NewWorld(game.DefaultConfig(), 1)
	if err != nil {
		b.Fatalf("NewWorld: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr := Encode(w, w.Bots[i%len(w.Bots)], DefaultRange)
		PutFeatures(ptr)
	}
}

func TestOpenPolicy(t *testing.T) {
	p, closer, err := OpenPolicy(PolicyHeuristic, "", 1, OnnxClientConfig{})
	if err != nil || p == nil {
		t.Fatalf("heuristic: p=%v err=%v", p, err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := OpenPolicy(PolicyOnnx, "", 1, OnnxClientConfig{}); err == nil {
		t.Fatalf("onnx without a model should fail")
	}
	if _, _, err := OpenPolicy("oracle", "", 1, OnnxClientConfig{}); err == nil {
		t.Fatalf("unknown policy should fail")
	}
}
