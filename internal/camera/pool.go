package camera

import (
	"fmt"
	"log/slog"
)

type slot struct {
	index uint32
	data  []byte
}

// bufferPool is the set of driver buffers mapped into the process. It is
// allocated and released as a whole.
type bufferPool struct {
	dev    Device
	slots  []slot
	logger *slog.Logger
}

// allocatePool requests want buffers and maps every one the driver grants.
// On any failure nothing stays mapped or allocated.
func allocatePool(dev Device, want, minimum int, logger *slog.Logger) (*bufferPool, error) {
	granted, err := dev.RequestBuffers(uint32(want))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInsufficientBuffers, err)
	}
	p := &bufferPool{dev: dev, logger: logger}
	if int(granted) < minimum {
		p.free()
		return nil, fmt.Errorf("%w: requested %d, granted %d, need at least %d",
			ErrInsufficientBuffers, want, granted, minimum)
	}

	p.slots = make([]slot, 0, granted)
	for i := range granted {
		data, err := dev.MapBuffer(i)
		if err != nil {
			p.release()
			return nil, fmt.Errorf("%w: buffer %d: %w", ErrMappingFailed, i, err)
		}
		p.slots = append(p.slots, slot{index: i, data: data})
	}

	logger.Debug("Buffer pool mapped", "buffers", len(p.slots), "length", len(p.slots[0].data))
	return p, nil
}

func (p *bufferPool) size() int {
	return len(p.slots)
}

// buffer returns the mapping for a dequeued index.
func (p *bufferPool) buffer(index uint32) ([]byte, bool) {
	if int(index) >= len(p.slots) {
		return nil, false
	}
	return p.slots[index].data, true
}

// queueAll hands every buffer to the driver ahead of StreamOn.
func (p *bufferPool) queueAll() error {
	for _, s := range p.slots {
		if err := p.dev.QueueBuffer(s.index); err != nil {
			return err
		}
	}
	return nil
}

// release unmaps every slot, continuing past failures, then frees the
// driver allocation.
func (p *bufferPool) release() {
	for _, s := range p.slots {
		if err := p.dev.UnmapBuffer(s.data); err != nil {
			p.logger.Warn("Failed to unmap buffer", "index", s.index, "error", err)
		}
	}
	p.slots = nil
	p.free()
}

func (p *bufferPool) free() {
	if _, err := p.dev.RequestBuffers(0); err != nil {
		p.logger.Debug("Failed to free driver buffers", "error", err)
	}
}
