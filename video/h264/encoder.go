package h264

import (
	"bytes"
	"image"

	"github.com/gen2brain/x264-go"
	"github.com/pion/webrtc/v4"

	"github.com/dmisol/lkportal/video"
)

// Factory makes x264 encoders tuned for real-time publishing.
type Factory struct {
	Preset  string
	Tune    string
	Profile string
}

func NewFactory() *Factory {
	return &Factory{
		Preset:  "veryfast",
		Tune:    "zerolatency",
		Profile: "baseline",
	}
}

func (f *Factory) Capability() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeH264,
		ClockRate:   90000,
		SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
	}
}

func (f *Factory) NewEncoder(w, h, fps int) (video.Encoder, error) {
	e := &Encoder{}
	enc, err := x264.NewEncoder(&e.buf, &x264.Options{
		Width:     w,
		Height:    h,
		FrameRate: fps,
		Preset:    f.Preset,
		Tune:      f.Tune,
		Profile:   f.Profile,
	})
	if err != nil {
		return nil, err
	}
	e.enc = enc
	return e, nil
}

// Encoder collects the annex-b output of one Encode call into one sample.
// x264-go converts the RGBA frame to I420 on its own.
type Encoder struct {
	enc *x264.Encoder
	buf bytes.Buffer
}

func (e *Encoder) Encode(img *image.RGBA) (b []byte, err error) {
	e.buf.Reset()
	if err = e.enc.Encode(img); err != nil {
		return
	}
	if e.buf.Len() == 0 {
		return
	}
	b = make([]byte, e.buf.Len())
	copy(b, e.buf.Bytes())
	return
}

func (e *Encoder) Close() error {
	_ = e.enc.Flush()
	return e.enc.Close()
}
