// Package iocontext provides injectable I/O streams and a filesystem via
// context for testability.
package iocontext

import (
	"context"
	"io"
	"os"

	"github.com/spf13/afero"
)

// IO holds the streams and the filesystem used by commands.
type IO struct {
	Out    io.Writer // stdout
	ErrOut io.Writer // stderr
	In     io.Reader // stdin

	// Fs is where attachments and import files are read from.
	Fs afero.Fs
}

// DefaultIO returns the standard IO streams and the OS filesystem.
func DefaultIO() *IO {
	return &IO{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
		In:     os.Stdin,
		Fs:     afero.NewOsFs(),
	}
}

type ioKey struct{}

// WithIO adds IO streams to a context. A nil Fs is replaced by the OS
// filesystem.
func WithIO(ctx context.Context, io *IO) context.Context {
	if io != nil && io.Fs == nil {
		io.Fs = afero.NewOsFs()
	}
	return context.WithValue(ctx, ioKey{}, io)
}

// GetIO retrieves IO streams from context, defaulting to standard streams.
func GetIO(ctx context.Context) *IO {
	if io, ok := ctx.Value(ioKey{}).(*IO); ok && io != nil {
		return io
	}
	return DefaultIO()
}
