package inference

import (
	"fmt"
	"io"

	"github.com/kelvin0611/Mini-io-games/steering"
)

// Policy kinds accepted by OpenPolicy.
const (
	PolicyHeuristic = "heuristic"
	PolicyOnnx      = "onnx"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenPolicy builds a bot policy by name. For PolicyOnnx it loads modelPath
// into sessions ORT sessions; the returned closer releases them.
func OpenPolicy(kind, modelPath string, sessions int, cfg OnnxClientConfig) (steering.Policy, io.Closer, error) {
	switch kind {
	case "", PolicyHeuristic:
		return steering.Default(), nopCloser{}, nil
	case PolicyOnnx:
		if modelPath == "" {
			return nil, nil, fmt.Errorf("policy %q needs a model path", kind)
		}
		pool, err := NewOnnxClientPoolWithConfig(modelPath, sessions, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewOnnxPolicy(pool, nil), pool, nil
	}
	return nil, nil, fmt.Errorf("unknown policy %q", kind)
}
