package assets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"go.uber.org/zap"

	"github.com/milk9111/motiongraph/motion"
)

// bytesPerFrame is one 16-bit stereo sample.
const bytesPerFrame = 4

var _ motion.AudioSink = (*Sink)(nil)

// Sink plays motion graph audio requests. Clips without an embedded file get
// a generated tone so every authored clip name is audible.
type Sink struct {
	ctx    *audio.Context
	logger *zap.Logger

	clips map[string][]byte
	loops map[motion.LoopID]*audio.Player
	next  motion.LoopID
}

func NewSink(ctx *audio.Context, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		ctx:    ctx,
		logger: logger,
		clips:  make(map[string][]byte),
		loops:  make(map[motion.LoopID]*audio.Player),
	}
}

func (s *Sink) pcm(clip string, pitch float64) []byte {
	key := fmt.Sprintf("%s@%.2f", clip, pitch)
	if b, ok := s.clips[key]; ok {
		return b
	}
	base, ok := s.clips[clip]
	if !ok {
		var err error
		base, err = LoadClip(clip)
		if err != nil {
			s.logger.Debug("clip not embedded, using tone", zap.String("clip", clip))
			base = Tone(clip, 0.12)
		}
		s.clips[clip] = base
	}
	b := Resample(base, pitch)
	s.clips[key] = b
	return b
}

func (s *Sink) Play(req motion.AudioRequest) motion.LoopID {
	pcm := s.pcm(req.Clip, req.Pitch)
	if !req.Loop {
		p := s.ctx.NewPlayerFromBytes(pcm)
		p.SetVolume(req.Volume)
		p.Play()
		return 0
	}
	loop := audio.NewInfiniteLoop(bytes.NewReader(pcm), int64(len(pcm)))
	p, err := s.ctx.NewPlayer(loop)
	if err != nil {
		s.logger.Warn("audio loop failed", zap.String("clip", req.Clip), zap.Error(err))
		return 0
	}
	p.SetVolume(req.Volume)
	p.Play()
	s.next++
	s.loops[s.next] = p
	return s.next
}

func (s *Sink) Stop(id motion.LoopID) {
	p, ok := s.loops[id]
	if !ok {
		return
	}
	delete(s.loops, id)
	if err := p.Close(); err != nil {
		s.logger.Warn("audio stop failed", zap.Error(err))
	}
}

// Close stops every loop.
func (s *Sink) Close() {
	for id := range s.loops {
		s.Stop(id)
	}
}

// Tone synthesises a short decaying beep whose pitch is derived from name.
func Tone(name string, seconds float64) []byte {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	freq := 220 + float64(h.Sum32()%660)

	n := int(seconds * SampleRate)
	out := make([]byte, n*bytesPerFrame)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n)
		v := int16(math.Sin(2*math.Pi*freq*float64(i)/SampleRate) * (1 - t) * (1 - t) * 10000)
		binary.LittleEndian.PutUint16(out[i*bytesPerFrame:], uint16(v))
		binary.LittleEndian.PutUint16(out[i*bytesPerFrame+2:], uint16(v))
	}
	return out
}

// Resample speeds a clip up or down by pitch, stepping whole frames. Pitch
// values that are zero or one return pcm unchanged.
func Resample(pcm []byte, pitch float64) []byte {
	if pitch <= 0 || pitch == 1 {
		return pcm
	}
	frames := len(pcm) / bytesPerFrame
	n := int(float64(frames) / pitch)
	out := make([]byte, n*bytesPerFrame)
	for i := 0; i < n; i++ {
		src := int(float64(i) * pitch)
		if src >= frames {
			src = frames - 1
		}
		copy(out[i*bytesPerFrame:(i+1)*bytesPerFrame], pcm[src*bytesPerFrame:])
	}
	return out
}
