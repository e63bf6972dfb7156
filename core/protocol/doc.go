// Package protocol defines the JSON frames exchanged with an audio node over
// its websocket, plus the two platform voice payloads (voice state and voice
// server) that a node needs before it can establish a voice session.
//
// # Frames
//
// Every frame is a single JSON object carrying an "op" field. Outbound frames
// implement [Outbound] and are serialized with [Encode]:
//
//	data, err := protocol.Encode(protocol.Play{GuildID: "123", Track: track})
//	// {"op":"play","guildId":"123","track":"..."}
//
// Inbound frames are parsed with [Decode], which returns one of [*Stats],
// [*PlayerUpdate], [*Event] or [*Unknown]. Frames that are not valid JSON or
// carry no op yield a [*ProtocolError].
//
// Frames scoped to a guild implement [Scoped].
package protocol
