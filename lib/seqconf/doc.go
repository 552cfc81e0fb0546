// Package seqconf loads the sequence mapping: which backend target (data node) serves which
// sequence. The mapping is stored in properties format, one sequence per line:
//
//	# sequence_db_conf.properties
//	GLOBAL=dn1
//	COMPANY=dn2
//
// Sequence names can be lower-cased while loading, for deployments that treat table names
// case insensitively.
//
// Sources:
//
//   - File Source: Reads a properties file and watches its directory with fsnotify. Every
//     valid change is passed to the Watch callback, usually sequence.IAllocator.Reload.
//
//   - Nacos Source: Reads the mapping from a Nacos config server and listens for
//     changes.
//
// An update that fails to parse is logged and skipped. The previous mapping stays active.
package seqconf
