package file

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/tphakala/flac"

	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/errors"
)

// pcmReader decodes a stream into interleaved float32 samples
type pcmReader interface {
	// Read fills dst and returns the number of samples written.
	// io.EOF is returned once the stream is exhausted.
	Read(dst []float32) (int, error)
	SampleRate() int
	Channels() int
}

// Supported reports whether path has an extension this package can decode
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".flac", ".mp3", ".ogg", ".oga":
		return true
	}
	return false
}

// openReader selects a decoder from the file extension
func openReader(f *os.File) (pcmReader, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	switch ext {
	case ".wav":
		return newWAVReader(f)
	case ".flac":
		return newFLACReader(f)
	case ".mp3":
		return newMP3Reader(f)
	case ".ogg", ".oga":
		return newVorbisReader(f)
	default:
		return nil, errors.New(nil).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("resource", "audio_format").
			Context("extension", ext).
			Context("error", "unsupported audio file type").
			Build()
	}
}

func decodeError(err error, format string) error {
	return errors.New(err).
		Component(audiocore.ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("resource", "audio_format").
		Context("format", format).
		Context("operation", "open_decoder").
		Build()
}

type wavReader struct {
	dec     *wav.Decoder
	buf     *audio.IntBuffer
	divisor float32
}

// sampleDivisor returns the full-scale value for a PCM bit depth
func sampleDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	default:
		return 0, errors.Newf("unsupported bit depth: %d", bitDepth).Build()
	}
}

func newWAVReader(f *os.File) (*wavReader, error) {
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, decodeError(errors.NewStd("input is not a valid WAV audio file"), "wav")
	}

	divisor, err := sampleDivisor(int(dec.BitDepth))
	if err != nil {
		return nil, decodeError(err, "wav")
	}

	return &wavReader{
		dec: dec,
		buf: &audio.IntBuffer{
			Format: &audio.Format{SampleRate: int(dec.SampleRate), NumChannels: int(dec.NumChans)},
		},
		divisor: divisor,
	}, nil
}

func (r *wavReader) SampleRate() int { return int(r.dec.SampleRate) }
func (r *wavReader) Channels() int   { return int(r.dec.NumChans) }

func (r *wavReader) Read(dst []float32) (int, error) {
	if cap(r.buf.Data) < len(dst) {
		r.buf.Data = make([]int, len(dst))
	}
	r.buf.Data = r.buf.Data[:len(dst)]

	n, err := r.dec.PCMBuffer(r.buf)
	for i, v := range r.buf.Data[:n] {
		dst[i] = float32(v) / r.divisor
	}
	if n == 0 && err == nil {
		err = io.EOF
	}
	return n, err
}

// flacReader decodes whole FLAC frames and hands them out across reads
type flacReader struct {
	dec     *flac.Decoder
	divisor float32
	frame   []float32
	pending []float32
}

func newFLACReader(f *os.File) (*flacReader, error) {
	dec, err := flac.NewDecoder(f)
	if err != nil {
		return nil, decodeError(err, "flac")
	}
	divisor, err := sampleDivisor(dec.BitsPerSample)
	if err != nil {
		return nil, decodeError(err, "flac")
	}
	return &flacReader{dec: dec, divisor: divisor}, nil
}

func (r *flacReader) SampleRate() int { return r.dec.SampleRate }
func (r *flacReader) Channels() int   { return r.dec.NChannels }

func (r *flacReader) Read(dst []float32) (int, error) {
	for len(r.pending) == 0 {
		raw, err := r.dec.Next()
		if err != nil {
			return 0, err
		}
		r.frame = decodeLittleEndian(r.frame[:0], raw, r.dec.BitsPerSample/8, r.divisor)
		r.pending = r.frame
	}
	n := copy(dst, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// decodeLittleEndian converts signed little-endian PCM to float32, appending to dst
func decodeLittleEndian(dst []float32, raw []byte, bytesPerSample int, divisor float32) []float32 {
	for i := 0; i+bytesPerSample <= len(raw); i += bytesPerSample {
		var v int32
		switch bytesPerSample {
		case 2:
			v = int32(int16(binary.LittleEndian.Uint16(raw[i:])))
		case 3:
			// Shift up and back to sign-extend the 24-bit value
			v = int32(uint32(raw[i])<<8|uint32(raw[i+1])<<16|uint32(raw[i+2])<<24) >> 8
		case 4:
			v = int32(binary.LittleEndian.Uint32(raw[i:]))
		}
		dst = append(dst, float32(v)/divisor)
	}
	return dst
}

// mp3Reader wraps go-mp3, which always yields 16-bit little-endian stereo
type mp3Reader struct {
	dec *gomp3.Decoder
	raw []byte
}

func newMP3Reader(f *os.File) (*mp3Reader, error) {
	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return nil, decodeError(err, "mp3")
	}
	return &mp3Reader{dec: dec}, nil
}

func (r *mp3Reader) SampleRate() int { return r.dec.SampleRate() }
func (r *mp3Reader) Channels() int   { return 2 }

func (r *mp3Reader) Read(dst []float32) (int, error) {
	need := len(dst) * 2
	if cap(r.raw) < need {
		r.raw = make([]byte, need)
	}
	r.raw = r.raw[:need]

	n, err := r.dec.Read(r.raw)
	samples := n / 2
	for i := range samples {
		dst[i] = float32(int16(uint16(r.raw[2*i])|uint16(r.raw[2*i+1])<<8)) / 32768
	}
	if samples == 0 && err == nil {
		err = io.EOF
	}
	return samples, err
}

type vorbisReader struct {
	dec *oggvorbis.Reader
}

func newVorbisReader(f *os.File) (*vorbisReader, error) {
	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, decodeError(err, "ogg")
	}
	return &vorbisReader{dec: dec}, nil
}

func (r *vorbisReader) SampleRate() int { return r.dec.SampleRate() }
func (r *vorbisReader) Channels() int   { return r.dec.Channels() }

func (r *vorbisReader) Read(dst []float32) (int, error) {
	// The decoder works in whole frames
	usable := len(dst) - len(dst)%r.dec.Channels()
	n, err := r.dec.Read(dst[:usable])
	if n == 0 && err == nil {
		err = io.EOF
	}
	return n, err
}
