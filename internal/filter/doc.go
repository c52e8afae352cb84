// Package filter implements the HDF5 chunk filters the converter reads and
// writes: deflate (ID 1), shuffle (ID 2) and Fletcher-32 (ID 3).
//
// On read, [Pipeline] undoes the filters of a chunk in reverse order and
// honours the chunk's filter mask. On write, the same filters run forwards
// before a chunk is stored; large XPCS fields such as two-time matrices
// and ROI maps are written shuffled and deflated.
//
// Deflate uses compress/zlib. Other registered filters (szip, LZF, Blosc)
// are reported as unsupported.
package filter
