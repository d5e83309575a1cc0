package sensor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSimulatorInitialState(t *testing.T) {
	s := NewSimulator(zap.NewNop(), DefaultInterval, nil)

	assert.Equal(t, BaseTemperature, s.Temperature())
	assert.Equal(t, BaseHumidity, s.Humidity())
}

func TestSimulatorProducesReadings(t *testing.T) {
	var mu sync.Mutex
	var readings []Reading

	s := NewSimulator(zap.NewNop(), 10*time.Millisecond, func(r Reading) {
		mu.Lock()
		defer mu.Unlock()
		readings = append(readings, r)
	})

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(readings) >= 5
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, r := range readings {
		assert.InDelta(t, BaseTemperature, r.Temperature, tempVariation+3.5)
		assert.GreaterOrEqual(t, r.Humidity, 10.0)
		assert.LessOrEqual(t, r.Humidity, 95.0)
		assert.False(t, r.Timestamp.IsZero())
	}
}

func TestSimulatorStopHaltsCallbacks(t *testing.T) {
	var count sync.Map

	s := NewSimulator(zap.NewNop(), 5*time.Millisecond, func(r Reading) {
		count.Store("n", r)
	})

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	before := s.Current()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, s.Current())
}

func TestSimulatorStartIsIdempotent(t *testing.T) {
	s := NewSimulator(zap.NewNop(), 10*time.Millisecond, nil)

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSimulatorDefaultInterval(t *testing.T) {
	s := NewSimulator(nil, 0, nil)
	assert.Equal(t, DefaultInterval, s.interval)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5.0, clamp(7, -5, 5))
	assert.Equal(t, -5.0, clamp(-7, -5, 5))
	assert.Equal(t, 3.0, clamp(3, -5, 5))
}
