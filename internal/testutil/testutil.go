package testutil

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"myceliumweb.org/um/internal/dbutil"
)

func Context(t testing.TB) context.Context {
	ctx := context.Background()
	ctx, cf := context.WithCancel(ctx)
	t.Cleanup(cf)
	l, err := zap.NewDevelopment()
	require.NoError(t, err)
	ctx = logctx.NewContext(ctx, l)
	return ctx
}

// TempFile creates a temp file, unlinks it, and then returns the file.
// TempFile adds f.Close for Cleanup
func TempFile(t testing.TB) *os.File {
	f, err := os.CreateTemp("", "")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	require.NoError(t, os.Remove(f.Name()))
	return f
}

// ImageBytes serializes words as a big endian program image.
func ImageBytes(words []uint32) []byte {
	buf := bytes.Buffer{}
	for _, w := range words {
		buf.Write(binary.BigEndian.AppendUint32(nil, w))
	}
	return buf.Bytes()
}

// WriteImage writes words to a program image file in a temporary directory and returns its path.
func WriteImage(t testing.TB, words []uint32) string {
	p := filepath.Join(t.TempDir(), "prog.um")
	require.NoError(t, os.WriteFile(p, ImageBytes(words), 0o644))
	return p
}

// NewDB opens an in memory database, which is closed on Cleanup
func NewDB(t testing.TB) *sqlx.DB {
	db, err := dbutil.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
