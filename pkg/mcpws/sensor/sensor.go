// Package sensor provides a simulated temperature and humidity source for
// exercising a client without real hardware. Readings drift slowly around a
// baseline with small per-sample noise and a daily temperature cycle.
package sensor

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// BaseTemperature is the baseline the simulated temperature drifts around.
	BaseTemperature = 22.0

	// BaseHumidity is the baseline the simulated relative humidity drifts around.
	BaseHumidity = 45.0

	// DefaultInterval is how often a new reading is produced.
	DefaultInterval = 2 * time.Second

	tempVariation     = 5.0  // max slow drift, degrees C
	humidityVariation = 15.0 // max slow drift, percent RH
	driftInterval     = 10 * time.Second
)

// Reading is one simulated sample.
type Reading struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// Callback receives each new reading as it is produced.
type Callback func(Reading)

// Simulator produces readings on a fixed interval from a background
// goroutine. Accessors are safe to call from any goroutine.
type Simulator struct {
	logger   *zap.Logger
	interval time.Duration
	callback Callback

	mu             sync.Mutex
	current        Reading
	tempOffset     float64
	humidityOffset float64
	lastDrift      time.Time

	started time.Time
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewSimulator creates a simulator producing readings every interval. A
// non-positive interval gets DefaultInterval; the callback may be nil.
func NewSimulator(logger *zap.Logger, interval time.Duration, callback Callback) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Simulator{
		logger:   logger,
		interval: interval,
		callback: callback,
		current: Reading{
			Temperature: BaseTemperature,
			Humidity:    BaseHumidity,
			Timestamp:   time.Now(),
		},
	}
}

// Start launches the sampling goroutine. Calling Start on a running
// simulator is a no-op.
func (s *Simulator) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Sensor simulator already running")
		return
	}
	s.running = true
	s.started = time.Now()
	s.lastDrift = s.started
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	s.logger.Info("Sensor simulator started", zap.Duration("interval", s.interval))
}

// Stop halts sampling. No callbacks fire after Stop returns.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.done
	s.mu.Unlock()

	close(done)
	s.wg.Wait()

	s.logger.Info("Sensor simulator stopped")
}

// Temperature returns the most recent temperature in degrees C.
func (s *Simulator) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Temperature
}

// Humidity returns the most recent relative humidity in percent.
func (s *Simulator) Humidity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Humidity
}

// Current returns the most recent reading.
func (s *Simulator) Current() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Simulator) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r := s.sample(time.Now())
			if s.callback != nil {
				s.callback(r)
			}
		case <-s.done:
			return
		}
	}
}

// sample produces the next reading and stores it as current.
func (s *Simulator) sample(now time.Time) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The environment drifts slowly; the offsets take a small random step
	// every driftInterval and stay clamped to the variation bounds.
	if now.Sub(s.lastDrift) > driftInterval {
		s.tempOffset = clamp(s.tempOffset+(rand.Float64()-0.5)*0.5, -tempVariation, tempVariation)
		s.humidityOffset = clamp(s.humidityOffset+(rand.Float64()-0.5)*2.0, -humidityVariation, humidityVariation)
		s.lastDrift = now
	}

	tempNoise := (rand.Float64() - 0.5) * 0.2
	humidityNoise := (rand.Float64() - 0.5) * 1.0

	// A day-long sine gives the temperature a plausible diurnal swing.
	hours := now.Sub(s.started).Hours()
	daily := math.Sin(hours*2*math.Pi/24) * 3.0

	s.current = Reading{
		Temperature: BaseTemperature + s.tempOffset + tempNoise + daily,
		Humidity:    clamp(BaseHumidity+s.humidityOffset+humidityNoise, 10, 95),
		Timestamp:   now,
	}
	return s.current
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
