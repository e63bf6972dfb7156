// Package conn maintains one resumable websocket session to an audio node.
//
// A [Connection] dials the node with the handshake headers (Authorization,
// Num-Shards, User-Id and, when resuming, Resume-Key), keeps at most one live
// socket, and reconnects with exponential backoff whenever the socket drops
// without the caller asking for it.
//
// # Lifecycle
//
//	Disconnected -> Connecting -> Open -> Closing -> Disconnected
//	                                  \-> (error/close) -> Backoff -> Connecting
//
// [Connection.Connect] is idempotent: an open socket is closed, and its close
// confirmed, before the replacement is dialed. [Connection.Close] is a
// caller-initiated close and stops all reconnect attempts until the next
// Connect.
//
// # Outbound queue
//
// [Connection.Send] writes immediately while the socket is open. Otherwise the
// frame is appended to an unbounded FIFO queue that is flushed, in order, as
// soon as the next socket opens. Frames sent while a flush is running are
// queued behind it, never interleaved.
//
// # Resuming
//
// Resuming is off unless a key is configured ([Options.ResumeKey],
// [Options.ResumeStore] or [Connection.ConfigureResuming]). With a key, every
// open is followed by a configureResuming frame and the key is replayed in
// the next handshake.
//
// # Inbound frames
//
// Frames are decoded with protocol.Decode and handed to the [Handler].
// Undecodable frames are reported through [Handler] OnError as a
// *protocol.ProtocolError and dropped; the socket stays open.
package conn
