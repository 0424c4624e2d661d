package mobilenet

import (
	"errors"
	"fmt"

	"github.com/born-ml/mobilenet/internal/nn"
)

// ErrInvalidConfig is returned by NewWithConfig for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid mobilenet config")

// Channel widths of the input and of each stage output.
const (
	InputChannels  = 3
	Stage1Channels = 256
	Stage2Channels = 512
	Stage3Channels = 1024
)

// Defaults.
const (
	DefaultClasses   = 1000
	DefaultInitStd   = 0.1
	DefaultImageSize = 160
)

// Config holds the model construction settings.
type Config struct {
	NumClasses        int     // Output size of the classifier head.
	InitStd           float64 // Standard deviation of the N(0, std) conv weight init.
	Seed              uint64  // Seed for every random initialization.
	BatchNormEps      float64 // Numerical stability constant of every BatchNorm2D.
	BatchNormMomentum float64 // Running statistics momentum of every BatchNorm2D.
}

// DefaultConfig returns the ImageNet configuration: 1000 classes,
// N(0, 0.1) conv weights and PyTorch BatchNorm defaults.
func DefaultConfig() Config {
	return Config{
		NumClasses:        DefaultClasses,
		InitStd:           DefaultInitStd,
		Seed:              1,
		BatchNormEps:      nn.DefaultBatchNormEps,
		BatchNormMomentum: nn.DefaultBatchNormMomentum,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.NumClasses <= 0:
		return fmt.Errorf("%w: num_classes must be positive, got %d", ErrInvalidConfig, c.NumClasses)
	case c.InitStd <= 0:
		return fmt.Errorf("%w: init_std must be positive, got %v", ErrInvalidConfig, c.InitStd)
	case c.BatchNormEps <= 0:
		return fmt.Errorf("%w: batchnorm eps must be positive, got %v", ErrInvalidConfig, c.BatchNormEps)
	case c.BatchNormMomentum < 0 || c.BatchNormMomentum > 1:
		return fmt.Errorf("%w: batchnorm momentum must be in [0, 1], got %v", ErrInvalidConfig, c.BatchNormMomentum)
	}
	return nil
}
