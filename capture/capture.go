package capture

import (
	"image"
	"image/color"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/dmisol/lkportal/defs"
	"github.com/dmisol/lkportal/video"
)

// Camera reads frames from a local capture device.
type Camera struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat

	Stamp bool // print wall clock on each frame
}

func OpenCamera(id, w, h int) (c *Camera, err error) {
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, errors.Wrapf(err, "camera %d", id)
	}
	if w > 0 && h > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(w))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(h))
	}
	c = &Camera{vc: vc, mat: gocv.NewMat()}
	return
}

func (c *Camera) Frame() (image.Image, error) {
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, errors.New("camera: no frame")
	}
	if c.Stamp {
		gocv.PutText(&c.mat, time.Now().Format("15:04:05.000"), image.Pt(5, 20),
			gocv.FontHersheyPlain, 1.2, color.RGBA{0, 0, 255, 0}, 2)
	}
	return c.mat.ToImage()
}

func (c *Camera) Close() error {
	_ = c.mat.Close()
	return c.vc.Close()
}

// CameraFactory opens the device anew for every published track.
func CameraFactory(id, w, h int, stamp bool) video.SourceFactory {
	return func() (video.Source, error) {
		c, err := OpenCamera(id, w, h)
		if err != nil {
			return nil, err
		}
		c.Stamp = stamp
		return c, nil
	}
}

// LoadImage reads an image file, scaled to w x h when both are set.
func LoadImage(path string, w, h int) (image.Image, error) {
	m := gocv.IMRead(path, gocv.IMReadColor)
	defer m.Close()
	if m.Empty() {
		return nil, errors.Errorf("can't read %s", path)
	}

	if w > 0 && h > 0 && (m.Cols() != w || m.Rows() != h) {
		scaled := gocv.NewMat()
		defer scaled.Close()
		gocv.Resize(m, &scaled, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
		return scaled.ToImage()
	}
	return m.ToImage()
}

// Sources picks the frame source the config asks for.
func Sources(conf defs.VideoConf) (video.SourceFactory, error) {
	switch conf.Source {
	case defs.SourceImage:
		img, err := LoadImage(conf.Static, conf.W, conf.H)
		if err != nil {
			return nil, err
		}
		return video.StaticFactory(img), nil
	case defs.SourceCamera:
		return CameraFactory(conf.Camera, conf.W, conf.H, false), nil
	case defs.SourcePattern, "":
		return video.PatternFactory(conf.W, conf.H), nil
	}
	return nil, errors.Wrapf(defs.ErrBadConfig, "video source %q", conf.Source)
}
