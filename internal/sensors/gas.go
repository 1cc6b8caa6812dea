package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

var gasChannels = [...]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// ADS1115Gas reads the analog gas sensor through an ADS1115 ADC on I2C.
// Readings are raw ADC counts; the classifier thresholds are expressed in
// the same units.
type ADS1115Gas struct {
	bus i2c.BusCloser
	pin ads1x15.PinADC
}

// NewADS1115Gas opens the I2C bus (empty name selects the first available
// bus) and prepares single-shot conversions on the given channel (0-3).
func NewADS1115Gas(busName string, channel int) (*ADS1115Gas, error) {
	if channel < 0 || channel >= len(gasChannels) {
		return nil, fmt.Errorf("gas: ADC channel must be 0-3, got %d", channel)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gas: periph host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("gas: I2C open: %w", err)
	}

	adc, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("gas: ADS1115 init: %w", err)
	}

	pin, err := adc.PinForChannel(gasChannels[channel], 3300*physic.MilliVolt, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("gas: ADC channel setup: %w", err)
	}

	return &ADS1115Gas{bus: bus, pin: pin}, nil
}

// ReadOnce performs one single-shot conversion. No filtering here; the
// smoother damps ADC noise across iterations.
func (g *ADS1115Gas) ReadOnce() (int, error) {
	sample, err := g.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("gas: ADC read: %w", err)
	}
	return int(sample.Raw), nil
}

// Close halts the ADC pin and releases the I2C bus.
func (g *ADS1115Gas) Close() error {
	if err := g.pin.Halt(); err != nil {
		g.bus.Close()
		return fmt.Errorf("gas: ADC halt: %w", err)
	}
	return g.bus.Close()
}
