// Package message parses and serializes HDF5 object header messages.
//
// An object header is a list of messages, each framed by a small prefix
// that package object reads: in version 1 headers a 2-byte type, a 2-byte
// body size, a flags byte and three reserved bytes, with bodies aligned to
// eight bytes; in version 2 headers a 1-byte type, a 2-byte size, a flags
// byte and an optional 2-byte creation order. This package only sees the
// body. [Parse] decodes it by type and returns a [Message].
//
// # Message Types
//
//   - Dataspace (0x0001): rank and extents, scalar or null. See [Dataspace].
//   - Link info (0x0002): link storage of a new-style group. See [LinkInfo].
//   - Datatype (0x0003): element class, size and byte order. See [Datatype].
//   - Fill value (0x0004 old, 0x0005): value of unwritten storage. See
//     [FillValue].
//   - Link (0x0006): a hard, soft or external link. See [Link].
//   - Data layout (0x0008): compact, contiguous or chunked storage and the
//     chunk index. See [DataLayout].
//   - Group info (0x000A): link count hints of a new-style group. See
//     [GroupInfo].
//   - Filter pipeline (0x000B): filters applied to every chunk. See
//     [FilterPipeline].
//   - Attribute (0x000C): name, datatype, dataspace and value. See
//     [Attribute].
//   - Continuation (0x0010): address and length of the next block of
//     messages. See [Continuation].
//   - Symbol table (0x0011): B-tree and local heap of an old-style group.
//     See [SymbolTable].
//
// Other types, such as modification times and attribute info, come back
// as [Unknown] with their raw bytes so that a header can be read even when
// some of its messages are not understood.
//
// # Datatypes
//
// Fixed-point, floating-point and string classes are decoded fully, which
// covers what XPCS result files hold. Enums and variable-length types are
// decoded with their base type, so variable-length strings are recognized.
// Other classes keep their properties undecoded and report the class in
// errors.
//
// # Writing
//
// Messages the writer emits implement [Serializable]: Serialize encodes
// the body at the writer's position and SerializedSize reports its length
// so header space can be laid out first. Constructors such as
// [NewDataspace], [NewFloatDatatype], [NewStringDatatype],
// [NewChunkedLayout], [NewHardLink] and [NewAttribute] build the messages
// for new objects. Each Serialize method names the message version it
// writes.
package message
