package adc

import "github.com/sweeney/fret-sensor/internal/logic"

// FakeSampler is a test double that returns scripted raw values per channel.
type FakeSampler struct {
	// Samples maps a channel index to its scripted raw values.
	// Each call to Sample() consumes the next value for that channel.
	Samples map[int][]int

	// Calls counts Sample() invocations across all channels.
	Calls int

	index map[int]int
}

// NewFakeSampler creates a FakeSampler with the given per-channel samples.
func NewFakeSampler(samples map[int][]int) *FakeSampler {
	return &FakeSampler{Samples: samples, index: map[int]int{}}
}

// Sample returns the next scripted value for the channel.
// If values are exhausted, returns the last value repeatedly.
// Channels with no script read as MaxRaw (sensor straight, OFF).
func (f *FakeSampler) Sample(ch logic.Channel) int {
	f.Calls++
	vals := f.Samples[ch.Index]
	if len(vals) == 0 {
		return MaxRaw
	}
	i := f.index[ch.Index]
	if i < len(vals)-1 {
		f.index[ch.Index]++
	}
	return vals[i]
}

// Reset rewinds every channel to its first value.
func (f *FakeSampler) Reset() {
	f.index = map[int]int{}
	f.Calls = 0
}
