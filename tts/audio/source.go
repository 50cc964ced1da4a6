package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// maxSourceSize bounds fetched audio.
var maxSourceSize = 50 * 1024 * 1024

// DataURL wraps encoded audio bytes as a data: URL source.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// fetchSource returns the raw bytes of src. Supported forms are data:
// URLs, http(s) URLs and local file paths.
func fetchSource(ctx context.Context, client *http.Client, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return decodeDataURL(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch audio: %w", err)
		}
		defer resp.Body.Close() //nolint:errcheck
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("fetch audio: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxSourceSize)+1))
		if err != nil {
			return nil, fmt.Errorf("read audio: %w", err)
		}
		if len(data) > maxSourceSize {
			return nil, fmt.Errorf("read audio: source exceeds %d bytes", maxSourceSize)
		}
		return data, nil
	case strings.HasPrefix(src, "file://"):
		return os.ReadFile(strings.TrimPrefix(src, "file://"))
	case strings.Contains(src, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, src)
	default:
		return os.ReadFile(src)
	}
}

func decodeDataURL(src string) ([]byte, error) {
	comma := strings.IndexByte(src, ',')
	if comma < 0 {
		return nil, fmt.Errorf("%w: malformed data URL", ErrUnsupportedSource)
	}
	meta, payload := src[len("data:"):comma], src[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return data, nil
}

// decodeMP3 returns interleaved 16-bit stereo PCM and its sample rate.
func decodeMP3(data []byte) ([]byte, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("decode mp3: %w", err)
	}
	return pcm, dec.SampleRate(), nil
}

// resample converts 16-bit stereo PCM from inRate to outRate, speeding it
// up by rate, using linear interpolation.
func resample(pcm []byte, inRate, outRate int, rate float64) []byte {
	const frameSize = 4
	if rate <= 0 {
		rate = 1
	}
	frames := len(pcm) / frameSize
	if frames == 0 || inRate <= 0 || outRate <= 0 {
		return pcm
	}
	step := float64(inRate) * rate / float64(outRate)
	if step == 1 {
		return pcm
	}

	outFrames := int(float64(frames) / step)
	out := make([]byte, outFrames*frameSize)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		j := int(pos)
		frac := pos - float64(j)
		for ch := 0; ch < 2; ch++ {
			a := sampleAt(pcm, j, ch)
			b := a
			if j+1 < frames {
				b = sampleAt(pcm, j+1, ch)
			}
			v := int16(float64(a) + (float64(b)-float64(a))*frac)
			o := i*frameSize + ch*2
			out[o] = byte(v)
			out[o+1] = byte(uint16(v) >> 8)
		}
	}
	return out
}

func sampleAt(pcm []byte, frame, ch int) int16 {
	o := frame*4 + ch*2
	return int16(uint16(pcm[o]) | uint16(pcm[o+1])<<8)
}
