package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process
var (
	globalAudioCtx     *oto.Context
	globalAudioFormat  Format
	globalAudioCtxErr  error
	globalAudioCtxOnce sync.Once
)

// Format describes 16-bit little-endian PCM data
type Format struct {
	SampleRate int
	Channels   int
}

// Chime plays a short reminder sound. Play does not block.
type Chime struct {
	format Format
	pcm    []byte
	log    logger.Logger

	mu     sync.Mutex
	player *oto.Player
}

// NewChime loads the WAV file at path, or synthesizes the built-in chime when
// path is empty
func NewChime(path string, log logger.Logger) (*Chime, error) {
	log = logger.Default(log)
	if path == "" {
		format, pcm := synthesizeChime()
		return &Chime{format: format, pcm: pcm, log: log}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chime file: %w", err)
	}
	format, pcm, err := parseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chime file %s: %w", path, err)
	}
	return &Chime{format: format, pcm: pcm, log: log}, nil
}

// Format returns the PCM format of the chime
func (c *Chime) Format() Format {
	return c.format
}

// Play starts the chime, cutting off a previous one still playing
func (c *Chime) Play() error {
	ctx, err := audioContext(c.format, c.log)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.player != nil {
		c.player.Pause()
		c.player.Close()
	}

	player := ctx.NewPlayer(bytes.NewReader(c.pcm))
	player.Play()
	c.player = player

	go c.release(player)
	return nil
}

// Stop silences the chime
func (c *Chime) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.player != nil {
		c.player.Pause()
		c.player.Close()
		c.player = nil
	}
}

// release closes player once it has finished unless Play or Stop replaced it
func (c *Chime) release(player *oto.Player) {
	for player.IsPlaying() {
		time.Sleep(20 * time.Millisecond)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.player == player {
		if err := player.Close(); err != nil {
			c.log.Warning("Failed to close audio player: %v", err)
		}
		c.player = nil
	}
}

// audioContext initializes the process-wide context with the first format it
// sees. Later formats are played at that rate.
func audioContext(format Format, log logger.Logger) (*oto.Context, error) {
	globalAudioCtxOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			globalAudioCtxErr = fmt.Errorf("failed to initialize audio context: %w", err)
			return
		}

		// Wait for the hardware audio devices to be ready
		<-readyChan

		globalAudioCtx = ctx
		globalAudioFormat = format
		log.Info("Audio context initialized at %d Hz", format.SampleRate)
	})

	if globalAudioCtxErr != nil {
		return nil, globalAudioCtxErr
	}
	if globalAudioFormat != format {
		log.Warning("Chime format %+v differs from audio context %+v", format, globalAudioFormat)
	}
	return globalAudioCtx, nil
}

const chimeSampleRate = 44100

// synthesizeChime renders two rising sine tones with a decaying envelope
func synthesizeChime() (Format, []byte) {
	tones := []struct {
		freq     float64
		duration time.Duration
	}{
		{880, 180 * time.Millisecond},
		{1318.5, 320 * time.Millisecond},
	}

	var buf bytes.Buffer
	for _, tone := range tones {
		samples := int(float64(chimeSampleRate) * tone.duration.Seconds())
		for i := 0; i < samples; i++ {
			t := float64(i) / chimeSampleRate
			envelope := math.Exp(-4 * float64(i) / float64(samples))
			v := 0.4 * envelope * math.Sin(2*math.Pi*tone.freq*t)
			binary.Write(&buf, binary.LittleEndian, int16(v*math.MaxInt16))
		}
	}
	return Format{SampleRate: chimeSampleRate, Channels: 1}, buf.Bytes()
}

// parseWAV extracts the format and sample data of a 16-bit PCM WAV file
func parseWAV(data []byte) (Format, []byte, error) {
	reader := bytes.NewReader(data)

	var header struct {
		RIFF [4]byte
		Size uint32
		WAVE [4]byte
	}
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return Format{}, nil, err
	}
	if string(header.RIFF[:]) != "RIFF" || string(header.WAVE[:]) != "WAVE" {
		return Format{}, nil, errors.New("not a RIFF/WAVE file")
	}

	var format Format
	haveFormat := false

	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(reader, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return Format{}, nil, errors.New("no data chunk")
			}
			return Format{}, nil, err
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			var fmtChunk struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(reader, binary.LittleEndian, &fmtChunk); err != nil {
				return Format{}, nil, err
			}
			if fmtChunk.AudioFormat != 1 || fmtChunk.BitsPerSample != 16 {
				return Format{}, nil, fmt.Errorf("unsupported encoding (format %d, %d bits), need 16-bit PCM",
					fmtChunk.AudioFormat, fmtChunk.BitsPerSample)
			}
			format = Format{SampleRate: int(fmtChunk.SampleRate), Channels: int(fmtChunk.Channels)}
			haveFormat = true

			// Skip any extra format bytes
			if extra := int64(chunk.Size) - 16; extra > 0 {
				reader.Seek(extra, io.SeekCurrent)
			}
		case "data":
			if !haveFormat {
				return Format{}, nil, errors.New("data chunk before fmt chunk")
			}
			// A truncated file may claim more data than it holds
			size := min(int64(chunk.Size), int64(reader.Len()))
			pcm := make([]byte, size)
			if _, err := io.ReadFull(reader, pcm); err != nil {
				return Format{}, nil, err
			}
			return format, pcm, nil
		default:
			// Chunks are padded to an even size
			size := int64(chunk.Size)
			reader.Seek(size+size%2, io.SeekCurrent)
		}
	}
}
