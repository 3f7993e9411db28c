package update

import (
	"openenterprise/basicloader/flashsink"
	"openenterprise/basicloader/header"
)

// Target is the host glue an Apply call installs into: the firmware
// destination region (which doubles as the delta path's reference image,
// since a delta update patches the resident firmware in place) and a
// scratch region used to stage a decompressed delta block until the
// hash that confirms it is correct has been checked.
type Target struct {
	FW          *flashsink.Sink
	FWBase      uint32
	FWMax       uint32 // size in bytes of the region available for firmware
	Scratch     *flashsink.Sink
	ScratchBase uint32
	ScratchSize uint32
	PageSize    int
}

// fits reports whether a region of n bytes starting at FWBase is within
// the space this target has available for firmware.
func (t *Target) fits(n uint32) bool {
	return n <= t.FWMax
}

// readResidentHeader reads the header of the firmware currently installed
// at FWBase, the reference image a delta dry run validates against.
func (t *Target) readResidentHeader() (header.FWHeader, error) {
	buf, err := t.FW.ReadRange(t.FWBase, header.FWHeaderSize)
	if err != nil {
		return header.FWHeader{}, err
	}
	return header.ParseFWHeader(buf)
}
