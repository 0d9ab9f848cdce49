package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"live-support/pkg/logger"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const pliInterval = 3 * time.Second

// PionFactory builds receive-only peer connections that write Opus audio to
// <base>.ogg and VP8 video to <base>.ivf.
type PionFactory struct {
	api           *webrtc.API
	iceServers    []webrtc.ICEServer
	gatherTimeout time.Duration
	log           *slog.Logger
}

func NewPionFactory(stunURLs []string, gatherTimeout time.Duration, l *slog.Logger) (*PionFactory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	var servers []webrtc.ICEServer
	if len(stunURLs) > 0 {
		servers = []webrtc.ICEServer{{URLs: stunURLs}}
	}
	if gatherTimeout <= 0 {
		gatherTimeout = 10 * time.Second
	}
	return &PionFactory{
		api:           api,
		iceServers:    servers,
		gatherTimeout: gatherTimeout,
		log:           logger.Component(l, "recorder"),
	}, nil
}

func (f *PionFactory) Start(ctx context.Context, basePath string, offer Description) (Pipeline, Description, error) {
	pc, err := f.api.NewPeerConnection(webrtc.Configuration{ICEServers: f.iceServers})
	if err != nil {
		return nil, Description{}, fmt.Errorf("new peer connection: %w", err)
	}

	p := &pionPipeline{
		pc:   pc,
		base: basePath,
		log:  f.log.With("base", basePath),
		done: make(chan struct{}),
	}
	pc.OnTrack(p.onTrack)
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.log.Debug("peer connection state", "state", s.String())
	})

	fail := func(err error) (Pipeline, Description, error) {
		_ = pc.Close()
		return nil, Description{}, err
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}); err != nil {
		return fail(fmt.Errorf("set remote description: %w", err))
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(fmt.Errorf("create answer: %w", err))
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(fmt.Errorf("set local description: %w", err))
	}

	timer := time.NewTimer(f.gatherTimeout)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		// Answer with whatever candidates were gathered so far.
		p.log.Warn("ice gathering timed out")
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	local := pc.LocalDescription()
	if local == nil {
		return fail(errors.New("no local description"))
	}
	return p, Description{Type: local.Type.String(), SDP: local.SDP}, nil
}

// rtpWriter is satisfied by both oggwriter and ivfwriter.
type rtpWriter interface {
	WriteRTP(packet *rtp.Packet) error
	Close() error
}

type pionPipeline struct {
	pc   *webrtc.PeerConnection
	base string
	log  *slog.Logger

	mu      sync.Mutex
	writers []rtpWriter
	files   []string

	tracks    sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (p *pionPipeline) openWriter(codec webrtc.RTPCodecParameters) (rtpWriter, string, error) {
	switch strings.ToLower(codec.MimeType) {
	case strings.ToLower(webrtc.MimeTypeOpus):
		path := p.base + ".ogg"
		w, err := oggwriter.New(path, codec.ClockRate, codec.Channels)
		return w, path, err
	case strings.ToLower(webrtc.MimeTypeVP8):
		path := p.base + ".ivf"
		w, err := ivfwriter.New(path)
		return w, path, err
	default:
		return nil, "", fmt.Errorf("unsupported codec %s", codec.MimeType)
	}
}

func (p *pionPipeline) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	select {
	case <-p.done:
		return
	default:
	}

	w, path, err := p.openWriter(track.Codec())
	if err != nil {
		p.log.Warn("track not recorded", "kind", track.Kind().String(), "err", err)
		return
	}

	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		_ = w.Close()
		return
	default:
	}
	p.writers = append(p.writers, w)
	p.files = append(p.files, path)
	p.tracks.Add(1)
	p.mu.Unlock()
	defer p.tracks.Done()

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		go p.requestKeyframes(uint32(track.SSRC()))
	}

	p.log.Info("track recording", "kind", track.Kind().String(), "file", path)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if err := w.WriteRTP(pkt); err != nil {
			p.log.Warn("write rtp", "file", path, "err", err)
			return
		}
	}
}

func (p *pionPipeline) requestKeyframes(ssrc uint32) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}); err != nil {
				return
			}
		}
	}
}

func (p *pionPipeline) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.files...)
}

// Close tears down the peer connection, waits for track loops to drain and
// then flushes every writer.
func (p *pionPipeline) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		close(p.done)
		p.mu.Unlock()
		errs := []error{p.pc.Close()}

		drained := make(chan struct{})
		go func() {
			p.tracks.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("drain tracks: %w", ctx.Err()))
		}

		p.mu.Lock()
		for _, w := range p.writers {
			errs = append(errs, w.Close())
		}
		p.writers = nil
		p.mu.Unlock()

		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}
