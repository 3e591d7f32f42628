package core

import (
	"io"
	"sort"
)

// Region is a span of image bytes read during a scan.
type Region struct {
	Offset int64  `json:"offset"`
	Data   []byte `json:"data"`
}

type recorder struct {
	r       io.ReaderAt
	regions []Region
}

func (rc *recorder) ReadAt(p []byte, off int64) (int, error) {
	n, err := rc.r.ReadAt(p, off)
	if n > 0 {
		rc.regions = append(rc.regions, Region{Offset: off, Data: append([]byte(nil), p[:n]...)})
	}
	return n, err
}

// sparse serves recorded regions back; gaps read as zeros, reads past size
// hit EOF like the scanned image.
type sparse struct {
	regions []Region
	size    int64
}

func newSparse(regions []Region, size int64) *sparse {
	rs := append([]Region(nil), regions...)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Offset < rs[j].Offset })
	return &sparse{regions: rs, size: size}
}

func (s *sparse) ReadAt(p []byte, off int64) (int, error) {
	if off >= s.size {
		return 0, io.EOF
	}
	n := len(p)
	var err error
	if rest := s.size - off; int64(n) > rest {
		n, err = int(rest), io.EOF
	}
	clear(p[:n])
	end := off + int64(n)
	for _, r := range s.regions {
		rEnd := r.Offset + int64(len(r.Data))
		if rEnd <= off || r.Offset >= end {
			continue
		}
		from := max(off, r.Offset)
		to := min(end, rEnd)
		copy(p[from-off:to-off], r.Data[from-r.Offset:to-r.Offset])
	}
	return n, err
}
