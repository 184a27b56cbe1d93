package audio

import (
	"bytes"
	"errors"
	"io"
	"log"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const (
	// CaptureSampleRate is the capture rate used by recording clients.
	CaptureSampleRate = 44100

	// silenceThreshold is the fraction of full scale below which a sample
	// counts as silence.
	silenceThreshold = 0.01

	// boundaryPadMillis keeps a short buffer around the detected speech span
	// so trimming never clips the first or last syllable.
	boundaryPadMillis = 100

	// minSpanMillis is the shortest speech span worth trimming to. Anything
	// shorter keeps the original capture untouched.
	minSpanMillis = 500
)

var errNothingToTrim = errors.New("no trimmable speech span")

// TrimSilence removes leading and trailing silence from a WAV payload.
// Trimming is best-effort: undecodable input, all-silent input and spans
// shorter than the minimum duration all return the original bytes unchanged.
func TrimSilence(raw []byte) []byte {
	trimmed, err := trimSilence(raw)
	if err != nil {
		if !errors.Is(err, errNothingToTrim) {
			log.Printf("silence trim skipped, using original capture: %v", err)
		}
		return raw
	}
	return trimmed
}

func trimSilence(raw []byte) ([]byte, error) {
	dec := wav.NewDecoder(bytes.NewReader(raw))
	if !dec.IsValidFile() {
		return nil, errors.New("not a wav payload")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, errors.New("empty pcm buffer")
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	if channels <= 0 || sampleRate <= 0 {
		return nil, errors.New("invalid wav format")
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}

	frames := len(buf.Data) / channels
	threshold := int(silenceThreshold * float64(int(1)<<(bitDepth-1)))
	pad := sampleRate * boundaryPadMillis / 1000
	minSpan := sampleRate * minSpanMillis / 1000

	// Bounds come from the first channel only; padding widens them back out.
	start := -1
	for i := 0; i < frames; i++ {
		if abs(buf.Data[i*channels]) > threshold {
			start = max(0, i-pad)
			break
		}
	}
	if start < 0 {
		return nil, errNothingToTrim
	}
	end := frames - 1
	for i := frames - 1; i >= 0; i-- {
		if abs(buf.Data[i*channels]) > threshold {
			end = min(frames-1, i+pad)
			break
		}
	}
	if end-start < minSpan {
		return nil, errNothingToTrim
	}

	out := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
		Data:           buf.Data[start*channels : (end+1)*channels],
	}

	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, bitDepth, channels, 1)
	if err := enc.Write(out); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return io.ReadAll(ws.BytesReader())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
