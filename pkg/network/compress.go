package network

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// compressTo streams r into w as a zstd frame.
func compressTo(w io.Writer, r io.Reader) error {
	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return errors.Wrap(err, "failed to create zstd encoder")
	}

	if _, err := io.Copy(encoder, r); err != nil {
		encoder.Close()
		return err
	}
	return encoder.Close()
}

type zstdReadCloser struct {
	*zstd.Decoder
	under io.Closer
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.under.Close()
}

func decompressFrom(r io.ReadCloser) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd decoder")
	}
	return zstdReadCloser{Decoder: d, under: r}, nil
}
