package blockdev

// BlockSize is the fixed block size every Device in this package uses.
// spec.md does not mandate a specific size; 4096 matches the host page
// size /pagecache and /vm already assume.
const BlockSize = 4096

// Device is spec.md §6's BlockDevice trait.
type Device interface {
	// TotalBlocks returns the device's fixed capacity in BlockSize units.
	TotalBlocks() uint64

	// Submit begins req asynchronously and returns its BioSubmission.
	// req must be in the Init state; Submit transitions it to Submitted
	// before returning.
	Submit(req *BioReq) *BioSubmission
}
