package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"diskinspect/internal/common"
	"diskinspect/internal/compress"
	"diskinspect/internal/disasm"
	"diskinspect/internal/image/partition"
)

const sessionVersion = 1

// Session is enough of a scan to rebuild its layout without the image: the
// options and every byte range the scan read.
type Session struct {
	Version    int             `json:"version"`
	Image      string          `json:"image"`
	Codec      string          `json:"codec"`
	Offset     int64           `json:"offset"`
	Size       int64           `json:"size"`
	SectorSize int             `json:"sector_size"`
	Convention string          `json:"convention"`
	MaxEntries int             `json:"max_entries"`
	ForceGPT   bool            `json:"force_gpt,omitempty"`
	SkipEBR    bool            `json:"skip_ebr,omitempty"`
	Regions    []Region        `json:"regions"`
	Disasm     *disasm.Listing `json:"disasm,omitempty"`
	SavedAt    time.Time       `json:"saved_at"`
}

func (s *State) ToSession() (*Session, error) {
	if s.Layout == nil {
		return nil, ErrNoImage
	}
	return &Session{
		Version:    sessionVersion,
		Image:      s.Image,
		Codec:      s.Codec,
		Offset:     s.Offset,
		Size:       s.size,
		SectorSize: s.Opt.SectorSize,
		Convention: s.Opt.Convention.String(),
		MaxEntries: s.Opt.MaxEntries,
		ForceGPT:   s.Opt.ForceGPT,
		SkipEBR:    s.Opt.SkipEBR,
		Regions:    s.regions,
		Disasm:     s.Listing,
		SavedAt:    time.Now().UTC(),
	}, nil
}

// FromSession replays the recorded reads through Scan.
func (s *State) FromSession(sess *Session) error {
	if sess.Version != sessionVersion {
		return fmt.Errorf("session version %d: unsupported", sess.Version)
	}
	conv, err := partition.ParseConvention(sess.Convention)
	if err != nil {
		return err
	}
	if err := partition.CheckSectorSize(sess.SectorSize); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if sess.Size < 0 {
		return fmt.Errorf("session size %d: %w", sess.Size, common.ErrMalformedInput)
	}
	s.Close()
	s.Image, s.Codec, s.Offset = sess.Image, sess.Codec, sess.Offset
	s.size = sess.Size
	s.reader = newSparse(sess.Regions, sess.Size)
	s.Listing = sess.Disasm
	opt := partition.Options{
		SectorSize: sess.SectorSize,
		Convention: conv,
		MaxEntries: sess.MaxEntries,
		ForceGPT:   sess.ForceGPT,
		SkipEBR:    sess.SkipEBR,
	}
	return s.Scan(context.Background(), opt)
}

// SaveSession writes the session as JSON, compressed with compression
// ("none" for plain JSON).
func (s *State) SaveSession(path, compression string) error {
	sess, err := s.ToSession()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if compress.Normalize(compression) == compress.Auto {
		compression = compress.None
	}
	w, err := compress.NewWriter(f, compression)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sess); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}

// LoadSession reads a session written by SaveSession, sniffing compression.
func (s *State) LoadSession(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	r, _, err := compress.NewReader(f, compress.Auto)
	if err != nil {
		return err
	}
	defer r.Close()

	var sess Session
	if err := json.NewDecoder(r).Decode(&sess); err != nil {
		return fmt.Errorf("decode session %s: %w", path, err)
	}
	return s.FromSession(&sess)
}
