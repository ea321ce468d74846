// Package mp4probe reads back the video track of a recorded fragmented MP4.
package mp4probe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

// ErrNoVideoTrack is returned when a file has no video track.
var ErrNoVideoTrack = errors.New("mp4probe: no video track found")

// Summary describes the video track of a file.
type Summary struct {
	Codec      string          `json:"codec"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Timescale  uint32          `json:"timescale"`
	Fragmented bool            `json:"fragmented"`
	Fragments  int             `json:"fragments"`
	Samples    int             `json:"samples"`
	Timestamps []time.Duration `json:"timestamps"`
	Duration   time.Duration   `json:"duration"`
	Bytes      int64           `json:"bytes"`
}

// ProbeFile summarizes the file at path.
func ProbeFile(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return Probe(f)
}

// ProbeBytes summarizes an in-memory file.
func ProbeBytes(data []byte) (*Summary, error) {
	return Probe(bytes.NewReader(data))
}

// Probe summarizes the file read from reader.
func Probe(reader io.ReadSeeker) (*Summary, error) {
	size, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}

	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	var moov *mp4.MoovBox
	if mp4File.Init != nil && mp4File.Init.Moov != nil {
		moov = mp4File.Init.Moov
	} else {
		moov = mp4File.Moov
	}
	if moov == nil {
		return nil, ErrNoVideoTrack
	}

	trak := videoTrack(moov)
	if trak == nil {
		return nil, ErrNoVideoTrack
	}

	s := &Summary{
		Codec:      sampleEntry(trak),
		Width:      int(uint32(trak.Tkhd.Width) >> 16),
		Height:     int(uint32(trak.Tkhd.Height) >> 16),
		Timescale:  1000,
		Fragmented: mp4File.IsFragmented(),
		Bytes:      size,
	}
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
		s.Timescale = trak.Mdia.Mdhd.Timescale
	}

	if !s.Fragmented {
		return s, nil
	}

	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trak.Tkhd.TrackID {
				trex = t
				break
			}
		}
	}

	var end uint64
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			s.Fragments++
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return nil, fmt.Errorf("get samples: %w", err)
			}
			for _, sample := range samples {
				s.Timestamps = append(s.Timestamps, s.toDuration(sample.DecodeTime))
				end = sample.DecodeTime + uint64(sample.Dur)
			}
			s.Samples += len(samples)
		}
	}
	s.Duration = s.toDuration(end)

	return s, nil
}

func (s *Summary) toDuration(ticks uint64) time.Duration {
	return time.Duration(ticks * uint64(time.Second) / uint64(s.Timescale))
}

func videoTrack(moov *mp4.MoovBox) *mp4.TrakBox {
	for _, trak := range moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide" {
			return trak
		}
	}
	return nil
}

func sampleEntry(trak *mp4.TrakBox) string {
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return "unknown"
	}
	children := trak.Mdia.Minf.Stbl.Stsd.Children
	if len(children) == 0 {
		return "unknown"
	}
	return children[0].Type()
}
