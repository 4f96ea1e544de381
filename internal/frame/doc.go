// Package frame implements the self-describing envelope used for every
// persisted blob (hash configurations, storage snapshots).
//
// Layout (little endian):
//
//	magic       [4]byte  "NLSH"
//	version     uint8
//	compression uint8
//	codecLen    uint8
//	codec       [codecLen]byte
//	rawSize     uint32
//	storedSize  uint32   0 = payload stored uncompressed
//	checksum    uint32   CRC32C of the uncompressed payload
//	payload     [...]byte
package frame
