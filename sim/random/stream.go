// Package random provides the random-number streams and distributions consumed
// by simulation elements.
//
// A Stream produces U(0,1) draws and supports the stream/substream discipline
// needed for independent replications: every replication runs on its own
// substream, and a stream can be rewound to the start of the current
// substream or of the whole stream.
package random

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
)

// Stream is a source of uniform draws with substream control.
type Stream interface {
	// RandU01 returns the next draw in (0,1), or its complement when antithetic.
	RandU01() float64
	// ResetStartStream rewinds to the first substream.
	ResetStartStream()
	// ResetStartSubstream rewinds to the beginning of the current substream.
	ResetStartSubstream()
	// AdvanceToNextSubstream moves to the beginning of the next substream.
	AdvanceToNextSubstream()
	// SetAntithetic toggles complementary draws.
	SetAntithetic(anti bool)
	// Antithetic reports whether complementary draws are on.
	Antithetic() bool
}

// === SeedKey ===

// SeedKey identifies a reproducible set of streams. Two providers with the
// same SeedKey hand out bit-identical streams for the same names.
type SeedKey int64

// === PCGStream ===

// PCGStream is a Stream built on math/rand/v2 PCG. Substream k of a stream
// with seed s is PCG(s, k), so rewinding is re-seeding and substreams never
// share state.
type PCGStream struct {
	name       string
	seed       uint64
	substream  uint64
	antithetic bool
	src        *rand.PCG
}

// NewPCGStream returns a stream positioned at the start of substream 0.
func NewPCGStream(name string, seed uint64) *PCGStream {
	s := &PCGStream{name: name, seed: seed}
	s.src = rand.NewPCG(seed, 0)
	return s
}

// Name returns the stream name.
func (s *PCGStream) Name() string { return s.name }

// Substream returns the index of the current substream.
func (s *PCGStream) Substream() uint64 { return s.substream }

func (s *PCGStream) RandU01() float64 {
	// 53 random bits, shifted off zero so inverse CDFs stay finite.
	u := (float64(s.src.Uint64()>>11) + 0.5) / (1 << 53)
	if s.antithetic {
		return 1 - u
	}
	return u
}

func (s *PCGStream) ResetStartStream() {
	s.substream = 0
	s.src.Seed(s.seed, 0)
}

func (s *PCGStream) ResetStartSubstream() {
	s.src.Seed(s.seed, s.substream)
}

func (s *PCGStream) AdvanceToNextSubstream() {
	s.substream++
	s.src.Seed(s.seed, s.substream)
}

func (s *PCGStream) SetAntithetic(anti bool) { s.antithetic = anti }

func (s *PCGStream) Antithetic() bool { return s.antithetic }

// === Provider ===

// Provider hands out named, isolated streams derived from one SeedKey and
// applies stream-control operations to all of them at once.
//
// Derivation: streamSeed = key XOR fnv1a64(name). Streams are created lazily;
// the same name always returns the same Stream.
//
// Thread-safety: NOT thread-safe. Each replication driver owns its Provider.
type Provider struct {
	key     SeedKey
	factory func(name string, seed uint64) Stream
	streams map[string]Stream
}

// NewProvider returns a Provider of PCG streams.
func NewProvider(key SeedKey) *Provider {
	return &Provider{
		key: key,
		factory: func(name string, seed uint64) Stream {
			return NewPCGStream(name, seed)
		},
		streams: make(map[string]Stream),
	}
}

// NewProviderWith returns a Provider whose streams are built by factory.
func NewProviderWith(key SeedKey, factory func(name string, seed uint64) Stream) *Provider {
	if factory == nil {
		panic("NewProviderWith: factory must not be nil")
	}
	return &Provider{key: key, factory: factory, streams: make(map[string]Stream)}
}

// Key returns the provider's SeedKey.
func (p *Provider) Key() SeedKey { return p.key }

// Stream returns the stream registered under name, creating it if needed.
// Never returns nil.
func (p *Provider) Stream(name string) Stream {
	if s, ok := p.streams[name]; ok {
		return s
	}
	s := p.factory(name, uint64(int64(p.key)^fnv1a64(name)))
	p.streams[name] = s
	return s
}

// Register installs a caller-built stream under name.
func (p *Provider) Register(name string, s Stream) error {
	if _, ok := p.streams[name]; ok {
		return fmt.Errorf("stream %q already registered", name)
	}
	p.streams[name] = s
	return nil
}

// Names returns the registered stream names in sorted order.
func (p *Provider) Names() []string {
	names := make([]string, 0, len(p.streams))
	for n := range p.streams {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered streams.
func (p *Provider) Len() int { return len(p.streams) }

// ResetStartStream rewinds every stream to its first substream.
func (p *Provider) ResetStartStream() {
	for _, n := range p.Names() {
		p.streams[n].ResetStartStream()
	}
}

// ResetStartSubstream rewinds every stream to the start of its current substream.
func (p *Provider) ResetStartSubstream() {
	for _, n := range p.Names() {
		p.streams[n].ResetStartSubstream()
	}
}

// AdvanceToNextSubstream advances every stream.
func (p *Provider) AdvanceToNextSubstream() {
	for _, n := range p.Names() {
		p.streams[n].AdvanceToNextSubstream()
	}
}

// SetAntithetic toggles complementary draws on every stream.
func (p *Provider) SetAntithetic(anti bool) {
	for _, n := range p.Names() {
		p.streams[n].SetAntithetic(anti)
	}
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
