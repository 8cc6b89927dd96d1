package archive_test

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mswsus/cms/pkg/archive"
	"github.com/mswsus/cms/pkg/fs"
)

func TestWriter_Reader_RoundTrip(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "root.zip")

	w, err := archive.NewWriter(fsys, path)
	require.NoError(t, err)

	require.NoError(t, w.PutEntry("index.json", []byte(`{"v":1}`)))
	require.NoError(t, w.PutEntry("0/aaaa-1.xml", []byte(`<UpdateXml/>`)))
	require.NoError(t, w.Finish())

	r, err := archive.Open(fsys, path)
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.HasEntry("index.json"))
	require.False(t, r.HasEntry("missing.json"))

	data, err := r.GetEntryBytes("index.json")
	require.NoError(t, err)
	require.Equal(t, `{"v":1}`, string(data))

	stream, err := r.GetEntry("0/aaaa-1.xml")
	require.NoError(t, err)

	streamed, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	require.Equal(t, `<UpdateXml/>`, string(streamed))
}

func TestOpen_InvalidArchive(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "not-a-zip")

	require.NoError(t, fsys.WriteFile(path, []byte("not a zip file at all"), 0o644))

	_, err := archive.Open(fsys, path)
	require.ErrorIs(t, err, archive.ErrInvalidArchive)
}

func TestGetEntry_MissingEntry(t *testing.T) {
	t.Parallel()

	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "root.zip")

	w, err := archive.NewWriter(fsys, path)
	require.NoError(t, err)
	require.NoError(t, w.Finish())

	r, err := archive.Open(fsys, path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.GetEntry("index.json")
	require.Error(t, err)
}
