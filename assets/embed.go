// Package assets holds the playground's embedded sound clips and the audio
// sink graphs play them through.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

//go:embed *.wav
var assetsFS embed.FS

const SampleRate = 44100

// LoadClip decodes an embedded wav clip to 16-bit stereo PCM at SampleRate.
func LoadClip(name string) ([]byte, error) {
	clean := cleanAssetPath(name)
	if path.Ext(clean) == "" {
		clean += ".wav"
	}
	b, err := assetsFS.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	stream, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode wav %q: %w", name, err)
	}
	return io.ReadAll(stream)
}

func cleanAssetPath(p string) string {
	s := strings.ReplaceAll(p, "\\", "/")
	if idx := strings.LastIndex(s, "/assets/"); idx >= 0 {
		return s[idx+len("/assets/"):]
	}
	return strings.TrimPrefix(s, "assets/")
}
