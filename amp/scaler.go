package amp

// ScalerConfig configures dynamic loss scaling behavior
type ScalerConfig struct {
	InitialScale   float32 // Initial loss scale factor
	GrowthRate     float32 // Factor to increase loss scale when no overflow
	BackoffRate    float32 // Factor to decrease loss scale on overflow
	GrowthInterval int     // Number of clean steps between growth attempts
	MaxScale       float32 // Maximum allowed loss scale
	MinScale       float32 // Minimum allowed loss scale
}

// DefaultScalerConfig returns default loss scaling configuration
func DefaultScalerConfig() ScalerConfig {
	return ScalerConfig{
		InitialScale:   65536.0, // 2^16
		GrowthRate:     2.0,
		BackoffRate:    0.5,
		GrowthInterval: 2000,
		MaxScale:       1048576.0, // 2^20
		MinScale:       1.0,
	}
}

// LossScaler manages a dynamic loss scale: the scale shrinks whenever
// scaled gradients overflow and grows again after a run of clean steps.
type LossScaler struct {
	config               ScalerConfig
	currentScale         float32
	stepsSinceLastGrowth int
}

// NewLossScaler creates a loss scaler with the given configuration
func NewLossScaler(config ScalerConfig) *LossScaler {
	return &LossScaler{
		config:       config,
		currentScale: config.InitialScale,
	}
}

// Scale returns the current loss scale value
func (s *LossScaler) Scale() float32 {
	return s.currentScale
}

// Update adjusts the loss scale after a step. overflow reports whether
// the step observed Inf/NaN gradients.
func (s *LossScaler) Update(overflow bool) {
	if overflow {
		s.currentScale *= s.config.BackoffRate
		if s.currentScale < s.config.MinScale {
			s.currentScale = s.config.MinScale
		}
		s.stepsSinceLastGrowth = 0
		return
	}
	s.stepsSinceLastGrowth++
	if s.stepsSinceLastGrowth >= s.config.GrowthInterval {
		s.currentScale *= s.config.GrowthRate
		if s.currentScale > s.config.MaxScale {
			s.currentScale = s.config.MaxScale
		}
		s.stepsSinceLastGrowth = 0
	}
}
