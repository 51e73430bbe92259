package main

import (
	"go.uber.org/zap"

	"github.com/milk9111/motiongraph/motion"
)

// logSink stands in for the animation and audio hosts, logging what a
// graph asks of them at debug level.
type logSink struct {
	layers []string
	loops  motion.LoopID
	scale  float64
}

func servicesFor() motion.Services {
	sink := &logSink{scale: 1}
	return motion.Services{Animation: sink, Audio: sink, Time: sink}
}

func (s *logSink) Handle(name string) (motion.AnimHandle, bool) {
	for i, l := range s.layers {
		if l == name {
			return motion.AnimHandle(i), true
		}
	}
	s.layers = append(s.layers, name)
	return motion.AnimHandle(len(s.layers) - 1), true
}

func (s *logSink) SetFloat(h motion.AnimHandle, v float64) {
	logger.Debug("anim", zap.String("layer", s.layers[h]), zap.Float64("value", v))
}

func (s *logSink) SetBool(h motion.AnimHandle, v bool) {
	logger.Debug("anim", zap.String("layer", s.layers[h]), zap.Bool("value", v))
}

func (s *logSink) Play(req motion.AudioRequest) motion.LoopID {
	logger.Debug("audio play", zap.String("clip", req.Clip), zap.Bool("loop", req.Loop))
	if !req.Loop {
		return 0
	}
	s.loops++
	return s.loops
}

func (s *logSink) Stop(id motion.LoopID) {
	logger.Debug("audio stop", zap.Int("loop", int(id)))
}

func (s *logSink) TimeScale() float64 { return s.scale }

func (s *logSink) SetTimeScale(scale float64) {
	logger.Debug("time scale", zap.Float64("scale", scale))
	s.scale = scale
}
