// Package server provides the loopback HTTP listener that receives the OAuth redirect during login.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Callback Handler
//
// [CallbackHandler] captures the code, state, and error query parameters of the first request on its path,
// renders a small HTML page, and delivers the result through a channel exactly once. Later requests get 404.
//
// # Callback Listener
//
// [CallbackListener] binds 127.0.0.1:8898 by default before the browser is opened, serves the callback path,
// and waits in short poll intervals until the redirect arrives, the context ends, or the total timeout elapses.
// The socket is released on every exit path.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
