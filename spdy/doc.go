/*
Package spdy implements Google SPDY™ protocol versions 2 and 3 as a
transport-agnostic session engine: frame codec, header-block compression,
outbound priority scheduling and per-stream state, all driven through a
Callbacks struct the embedder supplies. The package never opens a socket
and never blocks; Session.Send and Session.Recv each make one unit of
progress per call and report ErrWouldBlock when there is none to be made,
so the embedder's own event loop (epoll, net.Conn deadlines, anything)
stays in control of I/O.

Spec:

http://tools.ietf.org/html/draft-mbelshe-httpbis-spdy-00

http://dev.chromium.org/spdy/spdy-whitepaper

http://www.chromium.org/spdy/spdy-protocol/spdy-protocol-draft2

http://dev.chromium.org/spdy/spdy-protocol/spdy-protocol-draft3
*/
package spdy
