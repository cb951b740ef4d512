package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextPlain(t *testing.T) {
	text, err := Text("notes.txt", []byte("hello tour"))
	require.NoError(t, err)
	require.Equal(t, "hello tour", text)
}

func TestTextUnsupportedExtension(t *testing.T) {
	_, err := Text("photo.png", []byte{0x89, 0x50})
	require.Error(t, err)
}

func TestTextInvalidUTF8(t *testing.T) {
	_, err := Text("notes.txt", []byte{0xff, 0xfe, 0x00})
	require.Error(t, err)
}

func TestMarkdownStripsFormatting(t *testing.T) {
	md := "# Hanoi Tour\n\nVisit the **Old Quarter** and try *pho*.\n\n- Temple of Literature\n- Hoan Kiem Lake\n"
	text, err := Text("tour.md", []byte(md))
	require.NoError(t, err)
	require.Contains(t, text, "Hanoi Tour")
	require.Contains(t, text, "Old Quarter")
	require.Contains(t, text, "Temple of Literature")
	require.NotContains(t, text, "**")
	require.NotContains(t, text, "# ")
}

func TestMarkdownKeepsCodeBlocks(t *testing.T) {
	md := "intro\n\n```\nroute: Hanoi -> Sapa\n```\n"
	text, err := Text("tour.md", []byte(md))
	require.NoError(t, err)
	require.Contains(t, text, "route: Hanoi -> Sapa")
}

func TestSupported(t *testing.T) {
	require.True(t, Supported("a.txt"))
	require.True(t, Supported("a.MD"))
	require.False(t, Supported("a.pdf"))
}
