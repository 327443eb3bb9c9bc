package pdf

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/snap2pdf/internal/domain"
)

func TestNative_Fragments(t *testing.T) {
	ctx := context.Background()
	doc, err := NewNative().Open(ctx, textPDF(t, []string{"Alpha", "Bravo"}, []string{"Charlie"}))
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 2, doc.NumPage())

	frags, err := doc.Fragments(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Bravo"}, squash(frags))

	frags, err = doc.Fragments(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie"}, squash(frags))

	_, err = doc.Fragments(ctx, 3)
	assert.True(t, domain.IsType(err, domain.ErrorTypePageOutOfRange))
}

func TestNative_OpenCorrupt(t *testing.T) {
	_, err := NewNative().Open(context.Background(), []byte("garbage"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDocumentLoad))
}

func squash(frags []string) []string {
	out := make([]string, len(frags))
	for i, f := range frags {
		out[i] = strings.ReplaceAll(f, " ", "")
	}
	return out
}
