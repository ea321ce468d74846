package mp4writer

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/camlab/pkg/ports"
)

const (
	trackID = 1

	// SampleEntryType is the sample description of the video track.
	SampleEntryType = "jpeg"
)

// muxer writes a fragmented MP4: ftyp and moov first, then one moof+mdat per flush.
//
// The duration of a sample is only known when the next one arrives, so the
// most recent sample is held back until then or until close.
type muxer struct {
	w         io.Writer
	timescale uint64
	frameDur  uint32
	perFrag   int

	seq     uint32
	pending *mp4.FullSample
	queued  []mp4.FullSample

	samples atomic.Int64 // Read by Session.Samples from other goroutines
	lastEnd uint64
}

func newMuxer(w io.Writer, s ports.VideoSettings, perFrag int) *muxer {
	frameDur := uint32(float64(s.Timescale) / s.FrameRate)
	if frameDur == 0 {
		frameDur = 1
	}
	return &muxer{
		w:         w,
		timescale: uint64(s.Timescale),
		frameDur:  frameDur,
		perFrag:   perFrag,
	}
}

func (m *muxer) writeInit(s ports.VideoSettings) error {
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(uint32(s.Timescale), "video", "und")

	trak := init.Moov.Trak
	entry := mp4.CreateVisualSampleEntryBox(SampleEntryType, uint16(s.Width), uint16(s.Height), nil)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(entry)
	trak.Tkhd.Width = mp4.Fixed32(s.Width << 16)
	trak.Tkhd.Height = mp4.Fixed32(s.Height << 16)

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso6", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return fmt.Errorf("encode moov: %w", err)
	}
	if _, err := m.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// ticks converts a presentation time to media ticks.
func (m *muxer) ticks(pts time.Duration) uint64 {
	if pts <= 0 {
		return 0
	}
	return uint64(pts) * m.timescale / uint64(time.Second)
}

// add takes one encoded sample. Decode times are kept strictly increasing even
// when two presentation times round to the same tick.
func (m *muxer) add(data []byte, pts time.Duration) error {
	dt := m.ticks(pts)

	if p := m.pending; p != nil {
		if dt <= p.DecodeTime {
			dt = p.DecodeTime + 1
		}
		p.Dur = uint32(dt - p.DecodeTime)
		m.queued = append(m.queued, *p)
		if len(m.queued) >= m.perFrag {
			if err := m.flush(); err != nil {
				return err
			}
		}
	}

	m.pending = &mp4.FullSample{
		Sample: mp4.Sample{
			Flags: mp4.SyncSampleFlags,
			Size:  uint32(len(data)),
		},
		DecodeTime: dt,
		Data:       data,
	}
	return nil
}

// close writes the held-back sample with one frame duration and flushes.
func (m *muxer) close() error {
	if p := m.pending; p != nil {
		p.Dur = m.frameDur
		m.queued = append(m.queued, *p)
		m.pending = nil
	}
	return m.flush()
}

func (m *muxer) flush() error {
	if len(m.queued) == 0 {
		return nil
	}
	m.seq++
	frag, err := mp4.CreateFragment(m.seq, trackID)
	if err != nil {
		return fmt.Errorf("create fragment: %w", err)
	}
	for _, s := range m.queued {
		frag.AddFullSample(s)
	}

	var buf bytes.Buffer
	if err := frag.Encode(&buf); err != nil {
		return fmt.Errorf("encode fragment: %w", err)
	}
	if _, err := m.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write fragment: %w", err)
	}

	last := m.queued[len(m.queued)-1]
	m.lastEnd = last.DecodeTime + uint64(last.Dur)
	m.samples.Add(int64(len(m.queued)))
	m.queued = m.queued[:0]
	return nil
}
