/*
Package bridge connects the server to the editor plugin over a WebSocket and
keeps tool calls answering even when the plugin is slow, crashed, or gone.

# Pieces

  - Client: owns the physical connection. Serializes outgoing CallEnvelopes,
    correlates incoming ResultEnvelopes by id, enforces per-call deadlines,
    and reconnects with capped linear backoff after unexpected closes.
  - Executor: the public entry point. Routes each action to the live channel
    or a supplied fallback and normalizes both into one result shape.
  - Transport/Conn: the injected connection primitive; production uses
    gorilla/websocket, tests an in-memory pipe.

# Wire format

JSON frames, dispatched by shape. A frame with an id is a response and
resolves the matching pending call; unmatched ids are logged and dropped. A
frame with an event field is an unsolicited peer event, broadcast on the
client's bus without touching the pending table.

# Failure taxonomy

ErrNotConnected (local precondition, never circuit-tracked), OpenError
(breaker refusal, carries stats), TimeoutError and ErrConnectionClosed
(circuit failures), PeerError (authoritative rejection by a live peer,
never triggers fallback or the breaker), malformed frames (logged, dropped).

Concurrent calls share the connection and the pending table; a mutex guards
table mutation and id allocation, a second mutex serializes socket writes,
and each pending call's outcome channel is buffered so exactly one of
{response, deadline, connection loss} delivers.
*/
package bridge
