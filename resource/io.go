package resource

import (
	"context"

	"github.com/hupe1980/colcluster/blobstore"
)

// ThrottledBlob charges every read against a Controller's throughput limit.
type ThrottledBlob struct {
	blobstore.Blob
	rc *Controller
}

// Throttle wraps b. With no throughput limit b is returned unchanged.
func Throttle(b blobstore.Blob, rc *Controller) blobstore.Blob {
	if rc == nil || rc.ioLimiter == nil {
		return b
	}
	return &ThrottledBlob{Blob: b, rc: rc}
}

func (b *ThrottledBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	want := int64(len(p))
	if rest := b.Size() - off; rest < want {
		want = max(rest, 0)
	}
	if err := b.rc.AcquireIO(ctx, int(want)); err != nil {
		return 0, err
	}
	return b.Blob.ReadAt(ctx, p, off)
}
