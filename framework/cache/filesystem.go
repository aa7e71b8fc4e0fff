package cache

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/spf13/afero"

	"github.com/km-arc/go-persistence/framework/tree"
)

// defaultBucket holds the entries of a pool without a namespace.
const defaultBucket = "_"

// FilesystemPool stores each entry in its own file, named by the SHA-1 of
// the key, inside a directory per namespace.
type FilesystemPool struct {
	namespace
	fs    afero.Fs
	clock clock.Clock
}

// NewFilesystemPool stores entries in fs. Tests pass afero.NewMemMapFs().
func NewFilesystemPool(fs afero.Fs, clk clock.Clock) *FilesystemPool {
	if clk == nil {
		clk = clock.WallClock
	}
	return &FilesystemPool{fs: fs, clock: clk}
}

// OpenFilesystemPool is the "filesystem" adapter constructor. Recognized
// options: directory (required).
func OpenFilesystemPool(options tree.Node) (*FilesystemPool, error) {
	dir := options.StringOr("directory", "")
	if dir == "" {
		return nil, errors.NotValidf("filesystem cache without directory")
	}
	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Annotatef(err, "creating cache directory %q", dir)
	}
	return NewFilesystemPool(afero.NewBasePathFs(osfs, dir), nil), nil
}

func (p *FilesystemPool) bucket() string {
	if p.ns == "" {
		return "/" + defaultBucket
	}
	return "/" + hashKey(p.ns)
}

func (p *FilesystemPool) file(key string) string {
	return path.Join(p.bucket(), hashKey(key))
}

func (p *FilesystemPool) Get(_ context.Context, key string) ([]byte, bool, error) {
	name := p.file(key)
	raw, err := afero.ReadFile(p.fs, name)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Trace(err)
	}
	value, expires, err := decodeEntry(raw)
	if err != nil {
		return nil, false, errors.Annotatef(err, "reading %s", name)
	}
	if expired(p.clock.Now(), expires) {
		_ = p.fs.Remove(name)
		return nil, false, nil
	}
	return value, true, nil
}

func (p *FilesystemPool) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := p.fs.MkdirAll(p.bucket(), 0o755); err != nil {
		return errors.Trace(err)
	}
	raw := encodeEntry(value, expiry(p.clock.Now(), ttl))

	// Readers see either the old entry or the new one, never a partial write.
	tmp, err := afero.TempFile(p.fs, p.bucket(), ".tmp-")
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = p.fs.Remove(tmp.Name())
		return errors.Trace(err)
	}
	if err := tmp.Close(); err != nil {
		_ = p.fs.Remove(tmp.Name())
		return errors.Trace(err)
	}
	if err := p.fs.Rename(tmp.Name(), p.file(key)); err != nil {
		_ = p.fs.Remove(tmp.Name())
		return errors.Trace(err)
	}
	return nil
}

func (p *FilesystemPool) Delete(_ context.Context, key string) error {
	err := p.fs.Remove(p.file(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	return nil
}

// Clear removes the entries of the current namespace only.
func (p *FilesystemPool) Clear(context.Context) error {
	return errors.Trace(p.fs.RemoveAll(p.bucket()))
}
