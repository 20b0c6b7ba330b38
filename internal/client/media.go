package client

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// LocalMedia holds the local tracks shared with every remote peer.
// Samples for a disabled kind are dropped, which is how mute and
// video off reach the wire.
type LocalMedia struct {
	Tracks []webrtc.TrackLocal

	mu       sync.RWMutex
	disabled map[webrtc.RTPCodecType]bool

	once sync.Once
	stop func() error
}

func NewLocalMedia(stop func() error, tracks ...webrtc.TrackLocal) *LocalMedia {
	return &LocalMedia{
		Tracks:   tracks,
		disabled: make(map[webrtc.RTPCodecType]bool),
		stop:     stop,
	}
}

func (m *LocalMedia) SetEnabled(kind webrtc.RTPCodecType, enabled bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled[kind] = !enabled
}

func (m *LocalMedia) Enabled(kind webrtc.RTPCodecType) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.disabled[kind]
}

type sampleWriter interface {
	webrtc.TrackLocal
	WriteSample(s media.Sample) error
}

// WriteSample writes s to every track of the given kind. It reports
// whether the sample was written.
func (m *LocalMedia) WriteSample(kind webrtc.RTPCodecType, s media.Sample) (bool, error) {
	if !m.Enabled(kind) {
		return false, nil
	}
	written := false
	for _, track := range m.Tracks {
		w, ok := track.(sampleWriter)
		if !ok || track.Kind() != kind {
			continue
		}
		if err := w.WriteSample(s); err != nil {
			return written, err
		}
		written = true
	}
	return written, nil
}

// Stop releases the underlying capture. Only the first call has effect.
func (m *LocalMedia) Stop() error {
	if m == nil {
		return nil
	}
	var err error
	m.once.Do(func() {
		if m.stop != nil {
			err = m.stop()
		}
	})
	return err
}

type MediaSource interface {
	Acquire(ctx context.Context) (*LocalMedia, error)
}

var ErrNoMedia = errors.New("no local media")

// StaticMediaSource provides an opus audio and a vp8 video track that
// samples can be written to. It captures no device.
type StaticMediaSource struct {
	StreamID string
	Audio    bool
	Video    bool
}

func (s StaticMediaSource) Acquire(ctx context.Context) (*LocalMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Audio && !s.Video {
		return nil, ErrNoMedia
	}

	streamID := s.StreamID
	if streamID == "" {
		streamID = "codetutor"
	}

	var tracks []webrtc.TrackLocal
	if s.Audio {
		audio, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, audio)
	}
	if s.Video {
		video, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, video)
	}

	return NewLocalMedia(nil, tracks...), nil
}
