package preview

import (
	"bytes"
	"image/jpeg"
	"net/http"

	"github.com/gorgonia/neuralflow/cache"
	"github.com/mattn/go-mjpeg"
	"github.com/pkg/errors"
)

// Stream serves rendered snapshots as a live MJPEG stream.
type Stream struct {
	enc    *Encoder
	stream *mjpeg.Stream
}

// NewStream creates a stream of w × h frames.
func NewStream(w, h int) *Stream {
	return &Stream{
		enc:    NewEncoder(w, h),
		stream: mjpeg.NewStream(),
	}
}

// Update renders k and pushes it to every connected client.
func (s *Stream) Update(k *cache.Knowledge) error {
	var b bytes.Buffer
	if err := jpeg.Encode(&b, s.enc.Render(k), nil); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(s.stream.Update(b.Bytes()))
}

func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.stream.ServeHTTP(w, r) }
